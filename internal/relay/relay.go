// internal/relay/relay.go
//
// Package relay is the rendezvous broker standing in for a generic P2P
// data-channel service. A host claims a short room code; every peer that
// joins the room gets a private, ordered channel to that host. The relay
// never inspects game payloads, it only pipes them.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	writeTimeout = 5 * time.Second
	// sendQueueLen bounds the per-connection write queue. A connection
	// that cannot drain its queue is dropped rather than allowed to stall
	// the piping goroutines.
	sendQueueLen = 256
	qrSize       = 256
)

// Server brokers rooms between one host and its peers.
type Server struct {
	log      *logrus.Logger
	registry Registry

	mu    sync.Mutex
	rooms map[string]*room
}

// NewServer builds a relay over the given room registry.
func NewServer(logger *logrus.Logger, registry Registry) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{
		log:      logger,
		registry: registry,
		rooms:    make(map[string]*room),
	}
}

// Handler returns the relay's HTTP surface: the host and join websocket
// endpoints plus the per-room QR join code.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/host", s.handleHost)
	mux.HandleFunc("GET /ws/join", s.handleJoin)
	mux.HandleFunc("GET /rooms/{room}/qr", s.handleQR)
	return mux
}

type room struct {
	id     string
	hostTx chan []byte

	mu    sync.Mutex
	peers map[string]*peerConn

	closed    chan struct{}
	closeOnce sync.Once
}

type peerConn struct {
	id   string
	conn *websocket.Conn
	tx   chan []byte

	closed    chan struct{}
	closeOnce sync.Once
}

func (p *peerConn) shutdown() {
	p.closeOnce.Do(func() { close(p.closed) })
}

func (rm *room) shutdown() {
	rm.closeOnce.Do(func() { close(rm.closed) })
}

// enqueue places data on tx unless the queue is full or the connection is
// closing. It reports whether the frame was accepted.
func enqueue(tx chan []byte, closed chan struct{}, data []byte) bool {
	select {
	case <-closed:
		return false
	default:
	}
	select {
	case tx <- data:
		return true
	default:
		return false
	}
}

// writePump drains tx onto conn in order, one write at a time.
func writePump(conn *websocket.Conn, tx chan []byte, closed chan struct{}) {
	for {
		select {
		case <-closed:
			return
		case data := <-tx:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) handleHost(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		http.Error(w, "missing room query parameter", http.StatusBadRequest)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warnf("host accept error for room %s: %v", roomID, err)
		return
	}
	defer c.CloseNow()

	claimed, err := s.registry.Claim(r.Context(), roomID)
	if err != nil {
		s.log.Errorf("registry claim failed for room %s: %v", roomID, err)
		c.Close(websocket.StatusInternalError, "registry unavailable")
		return
	}
	if !claimed {
		s.log.WithField("room", roomID).Info("rejected host claim, room taken")
		c.Close(websocket.StatusPolicyViolation, ReasonRoomTaken)
		return
	}

	rm := &room{
		id:     roomID,
		hostTx: make(chan []byte, sendQueueLen),
		peers:  make(map[string]*peerConn),
		closed: make(chan struct{}),
	}
	s.mu.Lock()
	s.rooms[roomID] = rm
	s.mu.Unlock()

	defer s.teardownRoom(rm)

	go writePump(c, rm.hostTx, rm.closed)

	ack, _ := json.Marshal(Frame{Op: OpRoomClaimed, Room: roomID})
	if !enqueue(rm.hostTx, rm.closed, ack) {
		return
	}
	s.log.WithFields(logrus.Fields{"room": roomID, "remote": r.RemoteAddr}).Info("room claimed")

	s.readHostFrames(r.Context(), c, rm)
}

// readHostFrames pipes host frames to the addressed peers until the host
// connection dies.
func (s *Server) readHostFrames(ctx context.Context, c *websocket.Conn, rm *room) {
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			s.log.WithField("room", rm.id).Infof("host connection closed: %v", err)
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.log.WithField("room", rm.id).Warnf("dropping malformed host frame: %v", err)
			continue
		}
		if f.Op != OpRelay {
			s.log.WithField("room", rm.id).Warnf("dropping unexpected host frame op %q", f.Op)
			continue
		}

		rm.mu.Lock()
		p := rm.peers[f.Peer]
		rm.mu.Unlock()
		if p == nil {
			// Peer already gone; the host will learn via peer_close.
			continue
		}
		if !enqueue(p.tx, p.closed, f.Payload) {
			s.log.WithFields(logrus.Fields{"room": rm.id, "peer": p.id}).Warn("peer send queue full, dropping peer")
			p.shutdown()
		}
	}
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warnf("join accept error for room %s: %v", roomID, err)
		return
	}
	defer c.CloseNow()

	s.mu.Lock()
	rm := s.rooms[roomID]
	s.mu.Unlock()
	if rm == nil {
		c.Close(websocket.StatusPolicyViolation, ReasonRoomNotFound)
		return
	}

	p := &peerConn{
		id:     uuid.NewString(),
		conn:   c,
		tx:     make(chan []byte, sendQueueLen),
		closed: make(chan struct{}),
	}

	rm.mu.Lock()
	rm.peers[p.id] = p
	rm.mu.Unlock()

	open, _ := json.Marshal(Frame{Op: OpPeerOpen, Peer: p.id})
	enqueue(rm.hostTx, rm.closed, open)
	s.log.WithFields(logrus.Fields{"room": rm.id, "peer": p.id, "remote": r.RemoteAddr}).Info("peer joined")

	go writePump(c, p.tx, p.closed)

	s.readPeerPayloads(r.Context(), c, rm, p)

	rm.mu.Lock()
	delete(rm.peers, p.id)
	rm.mu.Unlock()
	p.shutdown()

	closeFrame, _ := json.Marshal(Frame{Op: OpPeerClose, Peer: p.id})
	enqueue(rm.hostTx, rm.closed, closeFrame)
	s.log.WithFields(logrus.Fields{"room": rm.id, "peer": p.id}).Info("peer left")
}

// readPeerPayloads wraps each raw peer payload in a relay frame for the
// host. One goroutine per peer keeps that peer's delivery order intact.
func (s *Server) readPeerPayloads(ctx context.Context, c *websocket.Conn, rm *room, p *peerConn) {
	for {
		select {
		case <-rm.closed:
			return
		case <-p.closed:
			return
		default:
		}
		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		frame, err := json.Marshal(Frame{Op: OpRelay, Peer: p.id, Payload: data})
		if err != nil {
			s.log.WithField("peer", p.id).Warnf("dropping unframeable peer payload: %v", err)
			continue
		}
		if !enqueue(rm.hostTx, rm.closed, frame) {
			return
		}
	}
}

// teardownRoom closes every peer, releases the room code, and forgets the
// room. Runs when the host connection ends for any reason.
func (s *Server) teardownRoom(rm *room) {
	rm.shutdown()

	s.mu.Lock()
	delete(s.rooms, rm.id)
	s.mu.Unlock()

	rm.mu.Lock()
	peers := make([]*peerConn, 0, len(rm.peers))
	for _, p := range rm.peers {
		peers = append(peers, p)
	}
	rm.peers = make(map[string]*peerConn)
	rm.mu.Unlock()

	for _, p := range peers {
		p.conn.Close(websocket.StatusGoingAway, ReasonRoomClosed)
		p.shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.registry.Release(ctx, rm.id); err != nil {
		s.log.Errorf("failed to release room %s: %v", rm.id, err)
	}
	s.log.WithField("room", rm.id).Info("room closed")
}

// handleQR renders a QR code PNG of the room's join URL, so phones can
// scan instead of typing the code.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room")

	s.mu.Lock()
	_, ok := s.rooms[roomID]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	scheme := "ws"
	if r.TLS != nil {
		scheme = "wss"
	}
	url := fmt.Sprintf("%s://%s/ws/join?room=%s", scheme, r.Host, roomID)

	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		s.log.Errorf("failed to encode QR for room %s: %v", roomID, err)
		http.Error(w, "failed to generate QR code", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}
