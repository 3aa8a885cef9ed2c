// internal/transport/transport_test.go
package transport

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linyc/inkgold/internal/relay"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRelay(t *testing.T) *httptest.Server {
	t.Helper()
	srv := relay.NewServer(quietLogger(), relay.NewMemoryRegistry())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func relayWSURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

// event is one handler callback, recorded for ordering assertions.
type event struct {
	kind string // "open", "message", "close"
	ch   Channel
	data []byte
}

// recordingHandler funnels callbacks into a channel so tests can wait on
// them without polling.
type recordingHandler struct {
	events chan event
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{events: make(chan event, 64)}
}

func (h *recordingHandler) HandleOpen(ch Channel) {
	h.events <- event{kind: "open", ch: ch}
}

func (h *recordingHandler) HandleMessage(ch Channel, data []byte) {
	h.events <- event{kind: "message", ch: ch, data: append([]byte(nil), data...)}
}

func (h *recordingHandler) HandleClose(ch Channel) {
	h.events <- event{kind: "close", ch: ch}
}

func (h *recordingHandler) next(t *testing.T) event {
	t.Helper()
	select {
	case e := <-h.events:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for handler event")
		return event{}
	}
}

func TestNewRoomID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := NewRoomID()
		require.Len(t, id, RoomIDLength)
		for _, r := range id {
			assert.Contains(t, roomAlphabet, string(r))
		}
		seen[id] = true
	}
	// Collisions across 200 draws from a 31^5 space would be remarkable.
	assert.Greater(t, len(seen), 190)
}

func TestOpenRoomGeneratesCode(t *testing.T) {
	ts := newTestRelay(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	link, err := OpenRoom(ctx, HostOptions{RelayURL: relayWSURL(ts), Logger: quietLogger()}, newRecordingHandler())
	require.NoError(t, err)
	defer link.Close()

	assert.Len(t, link.RoomID(), RoomIDLength)
}

func TestOpenRoomFixedIDCollision(t *testing.T) {
	ts := newTestRelay(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := HostOptions{RelayURL: relayWSURL(ts), RoomID: "FIXED", Logger: quietLogger()}
	first, err := OpenRoom(ctx, opts, newRecordingHandler())
	require.NoError(t, err)
	defer first.Close()

	_, err = OpenRoom(ctx, opts, newRecordingHandler())
	assert.ErrorIs(t, err, ErrRoomExhausted)
}

func TestHostAndPeerExchange(t *testing.T) {
	ts := newTestRelay(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	handler := newRecordingHandler()
	link, err := OpenRoom(ctx, HostOptions{RelayURL: relayWSURL(ts), Logger: quietLogger()}, handler)
	require.NoError(t, err)
	defer link.Close()

	peer, err := Dial(ctx, relayWSURL(ts), link.RoomID())
	require.NoError(t, err)
	defer peer.Close()

	opened := handler.next(t)
	require.Equal(t, "open", opened.kind)
	require.NotEmpty(t, opened.ch.ID())

	// Peer to host.
	require.NoError(t, peer.Send(ctx, []byte(`{"hello":1}`)))
	msg := handler.next(t)
	require.Equal(t, "message", msg.kind)
	assert.Equal(t, opened.ch.ID(), msg.ch.ID())
	assert.JSONEq(t, `{"hello":1}`, string(msg.data))

	// Host to peer, twice, order preserved.
	require.NoError(t, opened.ch.Send(ctx, []byte(`{"n":1}`)))
	require.NoError(t, opened.ch.Send(ctx, []byte(`{"n":2}`)))
	first := <-peer.Messages()
	second := <-peer.Messages()
	assert.JSONEq(t, `{"n":1}`, string(first))
	assert.JSONEq(t, `{"n":2}`, string(second))
}

func TestPeerCloseReachesHandler(t *testing.T) {
	ts := newTestRelay(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	handler := newRecordingHandler()
	link, err := OpenRoom(ctx, HostOptions{RelayURL: relayWSURL(ts), Logger: quietLogger()}, handler)
	require.NoError(t, err)
	defer link.Close()

	peer, err := Dial(ctx, relayWSURL(ts), link.RoomID())
	require.NoError(t, err)

	opened := handler.next(t)
	require.Equal(t, "open", opened.kind)

	require.NoError(t, peer.Close())

	closed := handler.next(t)
	assert.Equal(t, "close", closed.kind)
	assert.Equal(t, opened.ch.ID(), closed.ch.ID())

	// A send to the departed peer fails rather than vanishing.
	require.Eventually(t, func() bool {
		return opened.ch.Send(ctx, []byte("{}")) != nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDialUnknownRoom(t *testing.T) {
	ts := newTestRelay(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	peer, err := Dial(ctx, relayWSURL(ts), "NADA2")
	if err != nil {
		return // relay refused the handshake outright, also acceptable
	}
	defer peer.Close()

	// The relay closes the socket immediately; the message channel drains
	// to closed and the link surfaces the error.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range peer.Messages() {
		}
	}()
	wg.Wait()
	assert.Error(t, peer.Err())
}

func TestLinkCloseUnblocksReaders(t *testing.T) {
	ts := newTestRelay(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handler := newRecordingHandler()
	link, err := OpenRoom(ctx, HostOptions{RelayURL: relayWSURL(ts), Logger: quietLogger()}, handler)
	require.NoError(t, err)

	peer, err := Dial(ctx, relayWSURL(ts), link.RoomID())
	require.NoError(t, err)
	handler.next(t) // open

	require.NoError(t, peer.Close())
	closed := handler.next(t)
	require.Equal(t, "close", closed.kind)

	require.NoError(t, link.Close())
	select {
	case <-link.Done():
	case <-time.After(time.Second):
		t.Fatal("link did not report shutdown")
	}
}
