// internal/transport/host.go
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/linyc/inkgold/internal/relay"
)

const (
	defaultClaimAttempts = 5
	writeTimeout         = 5 * time.Second
	claimTimeout         = 10 * time.Second
	sendQueueLen         = 256
)

// HostOptions configures OpenRoom.
type HostOptions struct {
	// RelayURL is the relay base URL (http, https, ws, or wss scheme).
	RelayURL string
	// RoomID pins a specific room code. Empty means generate one, and
	// regenerate on collision.
	RoomID string
	// MaxClaimAttempts bounds collision retries. Zero means the default.
	MaxClaimAttempts int
	Logger           *logrus.Logger
}

// HostLink is the host's end of a claimed room: a demultiplexer that turns
// relay frames into per-peer Channel callbacks on a Handler.
type HostLink struct {
	roomID  string
	conn    *websocket.Conn
	log     *logrus.Logger
	handler Handler

	tx chan []byte

	mu       sync.Mutex
	channels map[string]*hostChannel

	closed    chan struct{}
	closeOnce sync.Once
}

// hostChannel addresses one peer through the shared host connection.
type hostChannel struct {
	id   string
	link *HostLink
}

func (c *hostChannel) ID() string { return c.id }

// Send wraps the payload in a relay frame for this peer. All channel
// sends serialize through the link's single writer, so broadcast order is
// preserved both per channel and across channels.
func (c *hostChannel) Send(_ context.Context, payload []byte) error {
	c.link.mu.Lock()
	_, live := c.link.channels[c.id]
	c.link.mu.Unlock()
	if !live {
		return fmt.Errorf("%w: peer %s", ErrClosed, c.id)
	}

	frame, err := json.Marshal(relay.Frame{Op: relay.OpRelay, Peer: c.id, Payload: payload})
	if err != nil {
		return fmt.Errorf("frame payload for peer %s: %w", c.id, err)
	}

	select {
	case <-c.link.closed:
		return ErrClosed
	case c.link.tx <- frame:
		return nil
	default:
		return fmt.Errorf("send queue full for peer %s", c.id)
	}
}

// OpenRoom claims a room on the relay and starts the demux loop. When no
// fixed room id is given, a colliding claim regenerates the code and
// retries up to MaxClaimAttempts before failing with ErrRoomExhausted.
func OpenRoom(ctx context.Context, opts HostOptions, handler Handler) (*HostLink, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}
	attempts := opts.MaxClaimAttempts
	if attempts <= 0 {
		attempts = defaultClaimAttempts
	}
	if opts.RoomID != "" {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		roomID := opts.RoomID
		if roomID == "" {
			roomID = NewRoomID()
		}

		conn, err := claimRoom(ctx, opts.RelayURL, roomID)
		if err == nil {
			link := &HostLink{
				roomID:   roomID,
				conn:     conn,
				log:      log,
				handler:  handler,
				tx:       make(chan []byte, sendQueueLen),
				channels: make(map[string]*hostChannel),
				closed:   make(chan struct{}),
			}
			go link.writeLoop()
			go link.readLoop()
			log.WithField("room", roomID).Info("room open")
			return link, nil
		}

		var ce websocket.CloseError
		if errors.As(err, &ce) && ce.Code == websocket.StatusPolicyViolation && ce.Reason == relay.ReasonRoomTaken {
			log.WithField("room", roomID).Warn("room id collision, regenerating")
			lastErr = err
			continue
		}
		return nil, fmt.Errorf("open room %s: %w", roomID, err)
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRoomExhausted, attempts, lastErr)
}

// claimRoom dials the relay host endpoint and waits for the claim ack.
func claimRoom(ctx context.Context, relayURL, roomID string) (*websocket.Conn, error) {
	url := strings.TrimRight(relayURL, "/") + "/ws/host?room=" + roomID
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	ackCtx, cancel := context.WithTimeout(ctx, claimTimeout)
	defer cancel()
	_, data, err := conn.Read(ackCtx)
	if err != nil {
		conn.CloseNow()
		return nil, err
	}
	var f relay.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		conn.CloseNow()
		return nil, fmt.Errorf("parse claim ack: %w", err)
	}
	if f.Op != relay.OpRoomClaimed {
		conn.CloseNow()
		return nil, fmt.Errorf("unexpected claim ack op %q", f.Op)
	}
	return conn, nil
}

// RoomID returns the claimed room code.
func (l *HostLink) RoomID() string { return l.roomID }

// Done is closed when the link shuts down for any reason.
func (l *HostLink) Done() <-chan struct{} { return l.closed }

// Close tears the link down. Peer channels each get a close callback.
func (l *HostLink) Close() error {
	l.shutdown()
	return l.conn.Close(websocket.StatusNormalClosure, "")
}

func (l *HostLink) shutdown() {
	l.closeOnce.Do(func() { close(l.closed) })
}

func (l *HostLink) writeLoop() {
	for {
		select {
		case <-l.closed:
			return
		case data := <-l.tx:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := l.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				l.log.Warnf("relay write failed: %v", err)
				l.shutdown()
				return
			}
		}
	}
}

// readLoop demuxes relay frames into handler callbacks. It is the only
// goroutine invoking the handler, so callbacks arrive in frame order.
func (l *HostLink) readLoop() {
	defer func() {
		l.shutdown()
		l.mu.Lock()
		remaining := make([]*hostChannel, 0, len(l.channels))
		for _, ch := range l.channels {
			remaining = append(remaining, ch)
		}
		l.channels = make(map[string]*hostChannel)
		l.mu.Unlock()
		for _, ch := range remaining {
			l.handler.HandleClose(ch)
		}
	}()

	for {
		_, data, err := l.conn.Read(context.Background())
		if err != nil {
			select {
			case <-l.closed:
			default:
				l.log.Infof("relay connection closed: %v", err)
			}
			return
		}
		var f relay.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			l.log.Warnf("dropping malformed relay frame: %v", err)
			continue
		}

		switch f.Op {
		case relay.OpPeerOpen:
			ch := &hostChannel{id: f.Peer, link: l}
			l.mu.Lock()
			l.channels[f.Peer] = ch
			l.mu.Unlock()
			l.handler.HandleOpen(ch)

		case relay.OpRelay:
			l.mu.Lock()
			ch := l.channels[f.Peer]
			l.mu.Unlock()
			if ch == nil {
				l.log.Debugf("dropping frame for unknown peer %s", f.Peer)
				continue
			}
			l.handler.HandleMessage(ch, f.Payload)

		case relay.OpPeerClose:
			l.mu.Lock()
			ch := l.channels[f.Peer]
			delete(l.channels, f.Peer)
			l.mu.Unlock()
			if ch != nil {
				l.handler.HandleClose(ch)
			}

		default:
			l.log.Warnf("dropping unexpected relay frame op %q", f.Op)
		}
	}
}
