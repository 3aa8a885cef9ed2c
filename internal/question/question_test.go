// internal/question/question_test.go
package question

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeckAdvancesAndWraps(t *testing.T) {
	bank := []Question{
		{Prompt: "a", Answer: "A"},
		{Prompt: "b", Answer: "B"},
		{Prompt: "c", Answer: "C"},
	}
	d := NewDeck(bank)
	require.Equal(t, 3, d.Len())

	for round := 0; round < 2; round++ {
		for i, want := range bank {
			q, idx := d.Next()
			assert.Equal(t, i, idx)
			assert.Equal(t, want, q)
		}
	}
}

func TestDeckDefaultsToBuiltInBank(t *testing.T) {
	d := NewDeck(nil)
	require.Equal(t, len(DefaultBank), d.Len())
	q, idx := d.Next()
	assert.Equal(t, 0, idx)
	assert.Equal(t, DefaultBank[0], q)
}

func TestDeckIsolatedFromCallerSlice(t *testing.T) {
	bank := []Question{{Prompt: "a", Answer: "A"}}
	d := NewDeck(bank)
	bank[0].Answer = "mutated"
	q, _ := d.Next()
	assert.Equal(t, "A", q.Answer)
}
