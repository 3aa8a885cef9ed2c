// internal/client/client.go
//
// Package client implements the two remote roles: the player writing
// device and the admin controller. Both hold a read-only projection of the
// host's state, rebuilt from every snapshot that arrives; neither ever
// mutates game state locally beyond its own drawing surface.
package client

import (
	"context"
	"errors"
)

// Conn is the peer's ordered channel to the host. transport.Link
// satisfies it; tests substitute a recording fake.
type Conn interface {
	Send(ctx context.Context, payload []byte) error
	Messages() <-chan []byte
	Close() error
}

var (
	// ErrSubmissionInFlight rejects a submit while recognition for the
	// previous one is still outstanding.
	ErrSubmissionInFlight = errors.New("client: submission already in flight")
	// ErrAlreadySubmitted rejects drawing or submitting after the answer
	// for the current question went out.
	ErrAlreadySubmitted = errors.New("client: answer already submitted")
	// ErrNoInk rejects submitting an empty canvas.
	ErrNoInk = errors.New("client: nothing drawn")
	// ErrNotSubmitted rejects an appeal before any submission.
	ErrNotSubmitted = errors.New("client: no submitted answer to appeal")
	// ErrBadSlot rejects an out-of-range player slot.
	ErrBadSlot = errors.New("client: player slot out of range")
)
