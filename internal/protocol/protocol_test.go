// internal/protocol/protocol_test.go
package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linyc/inkgold/internal/ink"
	"github.com/linyc/inkgold/internal/question"
	"github.com/linyc/inkgold/internal/scoring"
)

func TestDecodeRoundTrip(t *testing.T) {
	msgs := []Message{
		NewRoleIdentify(RolePlayer, 2),
		NewNextQuestion(question.Question{Prompt: "太陽的「日」", Answer: "日"}, 4),
		NewDrawPoint(1, ink.Point{X: 0.25, Y: 0.75, IsNewPath: true}),
		NewIsWriting(0, true),
		NewClearCanvas(2),
		NewSubmitAnswer(1, "日"),
		NewAppeal(0),
		NewOverrideScore(2, false),
	}
	for _, m := range msgs {
		data, err := Encode(m)
		require.NoError(t, err)

		got, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	_, err := Decode([]byte(`{"type":"TELEPORT","playerIndex":0}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestSyncStateCarriesTriStateVerdicts(t *testing.T) {
	var state GameState
	state.Players[0].IsCorrect = scoring.Correct
	state.Players[1].IsCorrect = scoring.Incorrect
	state.Players[2].IsCorrect = scoring.Unknown
	state.CurrentQuestion = &question.Question{Prompt: "p", Answer: "a"}

	data, err := Encode(NewSyncState(7, state))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"isCorrect":true`)
	assert.Contains(t, string(data), `"isCorrect":false`)
	assert.Contains(t, string(data), `"isCorrect":null`)

	got, err := Decode(data)
	require.NoError(t, err)
	sync, ok := got.(*SyncState)
	require.True(t, ok)
	assert.Equal(t, uint64(7), sync.Seq)
	assert.Equal(t, state, sync.State)
}

func TestValidSlot(t *testing.T) {
	assert.True(t, ValidSlot(0))
	assert.True(t, ValidSlot(2))
	assert.False(t, ValidSlot(-1))
	assert.False(t, ValidSlot(3))
}

func TestDrawPointFieldNames(t *testing.T) {
	data, err := Encode(NewDrawPoint(2, ink.Point{X: 0.5, Y: 0.5, IsNewPath: true}))
	require.NoError(t, err)
	want := `{"type":"DRAW_POINT","playerIndex":2,"x":0.5,"y":0.5,"isNewPath":true}`
	assert.JSONEq(t, want, string(data))
}
