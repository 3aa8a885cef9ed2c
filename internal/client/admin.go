// internal/client/admin.go
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/linyc/inkgold/internal/protocol"
	"github.com/linyc/inkgold/internal/question"
)

// Admin is the remote scorer and question controller. It carries its own
// question deck; the host learns questions only through NEXT_QUESTION.
type Admin struct {
	conn Conn
	deck *question.Deck
	log  *logrus.Logger

	mu        sync.Mutex
	lastSeq   uint64
	state     protocol.GameState
	haveState bool
}

// NewAdmin builds an admin client over the given deck. A nil deck uses
// the built-in bank.
func NewAdmin(conn Conn, deck *question.Deck, logger *logrus.Logger) *Admin {
	if deck == nil {
		deck = question.NewDeck(nil)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Admin{conn: conn, deck: deck, log: logger}
}

// Start identifies the admin to the host and begins applying snapshots.
func (a *Admin) Start(ctx context.Context) error {
	data, err := protocol.Encode(protocol.NewRoleIdentify(protocol.RoleAdmin, 0))
	if err != nil {
		return err
	}
	if err := a.conn.Send(ctx, data); err != nil {
		return fmt.Errorf("identify: %w", err)
	}
	go a.readLoop(ctx)
	return nil
}

func (a *Admin) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-a.conn.Messages():
			if !ok {
				a.log.Info("connection to host closed")
				return
			}
			a.apply(data)
		}
	}
}

func (a *Admin) apply(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		a.log.Debugf("ignoring undecodable host message: %v", err)
		return
	}
	sync, ok := msg.(*protocol.SyncState)
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.haveState && sync.Seq <= a.lastSeq {
		a.log.Debugf("dropping stale snapshot seq=%d last=%d", sync.Seq, a.lastSeq)
		return
	}
	a.lastSeq = sync.Seq
	a.state = sync.State
	a.haveState = true
}

// NextQuestion advances the deck and deals the next question to the host.
func (a *Admin) NextQuestion(ctx context.Context) (question.Question, int, error) {
	q, idx := a.deck.Next()
	data, err := protocol.Encode(protocol.NewNextQuestion(q, idx))
	if err != nil {
		return question.Question{}, 0, err
	}
	if err := a.conn.Send(ctx, data); err != nil {
		return question.Question{}, 0, fmt.Errorf("deal question: %w", err)
	}
	a.log.WithFields(logrus.Fields{"question": idx, "prompt": q.Prompt}).Info("question dealt")
	return q, idx, nil
}

// Override flips the judgment for one slot.
func (a *Admin) Override(ctx context.Context, slot int, correct bool) error {
	if !protocol.ValidSlot(slot) {
		return fmt.Errorf("%w: %d", ErrBadSlot, slot)
	}
	data, err := protocol.Encode(protocol.NewOverrideScore(slot, correct))
	if err != nil {
		return err
	}
	if err := a.conn.Send(ctx, data); err != nil {
		return fmt.Errorf("override slot %d: %w", slot, err)
	}
	return nil
}

// State returns the last applied snapshot, if any arrived yet.
func (a *Admin) State() (protocol.GameState, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state, a.haveState
}
