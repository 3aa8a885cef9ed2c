// internal/transport/transport.go
//
// Package transport is the client half of the transport adapter: the host
// opens a room and receives one ordered Channel per peer, peers dial a
// room and get a single Link to the host. All sends are fire-and-forget;
// delivery problems surface as logged errors, never as retries.
package transport

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
)

// ErrRoomExhausted is returned when every room-claim attempt collided.
var ErrRoomExhausted = errors.New("transport: could not claim a room id")

// ErrClosed is returned by sends on a closed channel or link.
var ErrClosed = errors.New("transport: connection closed")

// roomAlphabet deliberately omits 0/O/1/I/L so codes survive being read
// aloud or copied from a screen.
const roomAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// RoomIDLength is the length of generated room codes.
const RoomIDLength = 5

// NewRoomID generates a short human-typable room code.
func NewRoomID() string {
	var b strings.Builder
	for i := 0; i < RoomIDLength; i++ {
		b.WriteByte(roomAlphabet[rand.IntN(len(roomAlphabet))])
	}
	return b.String()
}

// Channel is one ordered peer connection as seen from the host.
type Channel interface {
	// ID identifies the channel for the lifetime of the connection.
	ID() string
	// Send transmits one payload to the peer. Order is preserved per
	// channel. A send on a vanished peer returns an error.
	Send(ctx context.Context, payload []byte) error
}

// Handler receives channel lifecycle callbacks from a host link. Calls
// for a given channel are ordered: open, then messages in arrival order,
// then close.
type Handler interface {
	HandleOpen(ch Channel)
	HandleMessage(ch Channel, payload []byte)
	HandleClose(ch Channel)
}
