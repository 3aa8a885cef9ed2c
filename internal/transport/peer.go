// internal/transport/peer.go
package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Link is a peer's ordered channel to the host of one room.
type Link struct {
	conn *websocket.Conn
	msgs chan []byte

	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	closeErr error
}

// Dial connects to the host of the given room through the relay. A room
// that does not exist surfaces as the link closing almost immediately;
// the caller retries only on explicit user action.
func Dial(ctx context.Context, relayURL, roomID string) (*Link, error) {
	url := strings.TrimRight(relayURL, "/") + "/ws/join?room=" + roomID
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial room %s: %w", roomID, err)
	}

	l := &Link{
		conn:   conn,
		msgs:   make(chan []byte, 64),
		closed: make(chan struct{}),
	}
	go l.readLoop()
	return l, nil
}

// Send transmits one payload to the host.
func (l *Link) Send(ctx context.Context, payload []byte) error {
	select {
	case <-l.closed:
		return ErrClosed
	default:
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := l.conn.Write(writeCtx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("send to host: %w", err)
	}
	return nil
}

// Messages yields host payloads in arrival order. The channel is closed
// when the link dies.
func (l *Link) Messages() <-chan []byte { return l.msgs }

// Err reports why the link closed, nil while it is still up or after a
// clean local Close.
func (l *Link) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeErr
}

// Close shuts the link down.
func (l *Link) Close() error {
	l.shutdown(nil)
	return l.conn.Close(websocket.StatusNormalClosure, "")
}

func (l *Link) shutdown(err error) {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closeErr = err
		l.mu.Unlock()
		close(l.closed)
	})
}

// readLoop is the only closer of msgs, so a racing shutdown can never
// close the channel out from under a pending delivery.
func (l *Link) readLoop() {
	defer close(l.msgs)
	for {
		_, data, err := l.conn.Read(context.Background())
		if err != nil {
			select {
			case <-l.closed:
				l.shutdown(nil)
			default:
				l.shutdown(err)
			}
			return
		}
		select {
		case l.msgs <- data:
		case <-l.closed:
			return
		}
	}
}
