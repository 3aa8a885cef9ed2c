// internal/recognizer/googleime_test.go
package recognizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linyc/inkgold/internal/ink"
)

func sampleInk() ink.Ink {
	var k ink.Ink
	k.BeginStroke()
	k.AddPoint(ink.TimedPoint{X: 0.1, Y: 0.2, TimeMs: 1})
	k.AddPoint(ink.TimedPoint{X: 0.3, Y: 0.4, TimeMs: 20})
	k.EndStroke()
	return k
}

func newTestIME(t *testing.T, handler http.HandlerFunc) (*GoogleIME, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g := NewGoogleIME()
	g.Endpoint = srv.URL
	return g, srv
}

func TestGoogleIMERecognize(t *testing.T) {
	var gotBody imeRequest
	g, _ := newTestIME(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`["SUCCESS",[["req-1",["日","曰","目"],[],{}]]]`))
	})

	text, err := g.Recognize(context.Background(), sampleInk())
	require.NoError(t, err)
	assert.Equal(t, "日", text)

	// Request carries the writing guide and scaled strokes.
	require.Len(t, gotBody.Requests, 1)
	spec := gotBody.Requests[0]
	assert.Equal(t, ink.GuideSize, spec.WritingGuide.Width)
	assert.Equal(t, ink.GuideSize, spec.WritingGuide.Height)
	assert.Equal(t, DefaultLanguage, spec.Language)
	require.Len(t, spec.Ink, 1)
	assert.Equal(t, []int64{100, 300}, spec.Ink[0][0])
	assert.Equal(t, []int64{200, 400}, spec.Ink[0][1])
	assert.Equal(t, []int64{1, 20}, spec.Ink[0][2])
}

func TestGoogleIMEFailedStatus(t *testing.T) {
	g, _ := newTestIME(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["FAILED_TO_PARSE_REQUEST_BODY"]`))
	})
	_, err := g.Recognize(context.Background(), sampleInk())
	assert.Error(t, err)
}

func TestGoogleIMENoCandidates(t *testing.T) {
	g, _ := newTestIME(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["SUCCESS",[]]`))
	})
	_, err := g.Recognize(context.Background(), sampleInk())
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestGoogleIMEHTTPError(t *testing.T) {
	g, _ := newTestIME(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	})
	_, err := g.Recognize(context.Background(), sampleInk())
	assert.Error(t, err)
}

func TestGoogleIMECancelledContext(t *testing.T) {
	g, _ := newTestIME(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["SUCCESS",[["req-1",["日"]]]]`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Recognize(ctx, sampleInk())
	assert.Error(t, err)
}
