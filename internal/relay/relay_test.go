// internal/relay/relay_test.go
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRelay(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(quietLogger(), NewMemoryRegistry())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

// dialHost claims a room and consumes the claim ack.
func dialHost(t *testing.T, ctx context.Context, ts *httptest.Server, roomID string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.Dial(ctx, wsURL(ts, "/ws/host?room="+roomID), nil)
	require.NoError(t, err)
	f := readFrame(t, ctx, c)
	require.Equal(t, OpRoomClaimed, f.Op)
	require.Equal(t, roomID, f.Room)
	return c
}

func readFrame(t *testing.T, ctx context.Context, c *websocket.Conn) Frame {
	t.Helper()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestMemoryRegistryClaimRelease(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	ok, err := reg.Claim(ctx, "AAAAA")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.Claim(ctx, "AAAAA")
	require.NoError(t, err)
	assert.False(t, ok, "second claim of a live room fails")

	ok, err = reg.Claim(ctx, "BBBBB")
	require.NoError(t, err)
	assert.True(t, ok, "other ids are unaffected")

	require.NoError(t, reg.Release(ctx, "AAAAA"))
	ok, err = reg.Claim(ctx, "AAAAA")
	require.NoError(t, err)
	assert.True(t, ok, "released id is claimable again")
}

func TestHostClaimCollision(t *testing.T) {
	_, ts := newTestRelay(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first := dialHost(t, ctx, ts, "GAMES")
	defer first.CloseNow()

	second, _, err := websocket.Dial(ctx, wsURL(ts, "/ws/host?room=GAMES"), nil)
	require.NoError(t, err)
	defer second.CloseNow()

	_, _, err = second.Read(ctx)
	var ce websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.StatusPolicyViolation, ce.Code)
	assert.Equal(t, ReasonRoomTaken, ce.Reason)
}

func TestJoinUnknownRoom(t *testing.T) {
	_, ts := newTestRelay(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, wsURL(ts, "/ws/join?room=NOPES"), nil)
	require.NoError(t, err)
	defer c.CloseNow()

	_, _, err = c.Read(ctx)
	var ce websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.StatusPolicyViolation, ce.Code)
	assert.Equal(t, ReasonRoomNotFound, ce.Reason)
}

func TestRelayPipesBothDirections(t *testing.T) {
	_, ts := newTestRelay(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	host := dialHost(t, ctx, ts, "WIRES")
	defer host.CloseNow()

	peer, _, err := websocket.Dial(ctx, wsURL(ts, "/ws/join?room=WIRES"), nil)
	require.NoError(t, err)
	defer peer.CloseNow()

	open := readFrame(t, ctx, host)
	require.Equal(t, OpPeerOpen, open.Op)
	require.NotEmpty(t, open.Peer)

	// Peer to host: payload arrives framed with the peer id.
	require.NoError(t, peer.Write(ctx, websocket.MessageText, []byte(`{"type":"APPEAL","playerIndex":0}`)))
	up := readFrame(t, ctx, host)
	assert.Equal(t, OpRelay, up.Op)
	assert.Equal(t, open.Peer, up.Peer)
	assert.JSONEq(t, `{"type":"APPEAL","playerIndex":0}`, string(up.Payload))

	// Host to peer: the peer sees the bare payload, no envelope.
	down, err := json.Marshal(Frame{Op: OpRelay, Peer: open.Peer, Payload: []byte(`{"type":"CLEAR_CANVAS","playerIndex":1}`)})
	require.NoError(t, err)
	require.NoError(t, host.Write(ctx, websocket.MessageText, down))
	_, got, err := peer.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"CLEAR_CANVAS","playerIndex":1}`, string(got))
}

func TestPeerDepartureNotifiesHost(t *testing.T) {
	_, ts := newTestRelay(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	host := dialHost(t, ctx, ts, "LEAVE")
	defer host.CloseNow()

	peer, _, err := websocket.Dial(ctx, wsURL(ts, "/ws/join?room=LEAVE"), nil)
	require.NoError(t, err)

	open := readFrame(t, ctx, host)
	require.Equal(t, OpPeerOpen, open.Op)

	require.NoError(t, peer.Close(websocket.StatusNormalClosure, ""))

	closed := readFrame(t, ctx, host)
	assert.Equal(t, OpPeerClose, closed.Op)
	assert.Equal(t, open.Peer, closed.Peer)
}

func TestHostDepartureClosesPeersAndFreesRoom(t *testing.T) {
	_, ts := newTestRelay(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	host := dialHost(t, ctx, ts, "REUSE")

	peer, _, err := websocket.Dial(ctx, wsURL(ts, "/ws/join?room=REUSE"), nil)
	require.NoError(t, err)
	defer peer.CloseNow()
	readFrame(t, ctx, host) // peer_open

	require.NoError(t, host.Close(websocket.StatusNormalClosure, ""))

	_, _, err = peer.Read(ctx)
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		assert.Equal(t, websocket.StatusGoingAway, ce.Code)
		assert.Equal(t, ReasonRoomClosed, ce.Reason)
	} else {
		// Teardown may drop the TCP connection before the close frame
		// flushes; any read error still means the peer was cut off.
		require.Error(t, err)
	}

	// The code can be claimed again once the old room is gone.
	require.Eventually(t, func() bool {
		c, _, err := websocket.Dial(ctx, wsURL(ts, "/ws/host?room=REUSE"), nil)
		if err != nil {
			return false
		}
		defer c.CloseNow()
		_, data, err := c.Read(ctx)
		if err != nil {
			return false
		}
		var f Frame
		return json.Unmarshal(data, &f) == nil && f.Op == OpRoomClaimed
	}, 5*time.Second, 50*time.Millisecond)
}

func TestQREndpoint(t *testing.T) {
	_, ts := newTestRelay(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	host := dialHost(t, ctx, ts, "SCANS")
	defer host.CloseNow()

	resp, err := http.Get(ts.URL + "/rooms/SCANS/qr")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(body[:4]))

	missing, err := http.Get(ts.URL + "/rooms/XXXXX/qr")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}
