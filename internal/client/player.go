// internal/client/player.go
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/linyc/inkgold/internal/ink"
	"github.com/linyc/inkgold/internal/protocol"
	"github.com/linyc/inkgold/internal/question"
	"github.com/linyc/inkgold/internal/recognizer"
)

// Player is one writing device bound to a slot. Drawing is relayed
// point-by-point as it happens; the timed stroke series is retained
// locally and only leaves the device as recognized text on submit.
type Player struct {
	slot int
	conn Conn
	rec  recognizer.Recognizer
	log  *logrus.Logger
	now  func() time.Time

	// mu guards everything below; the read loop and the caller both
	// touch it.
	mu sync.Mutex

	board      ink.Board
	strokes    ink.Ink
	drawing    bool
	submitted  bool
	submitting bool

	lastSeq   uint64
	state     protocol.GameState
	haveState bool
	current   *question.Question
}

// NewPlayer builds a player client for the given slot.
func NewPlayer(conn Conn, slot int, rec recognizer.Recognizer, logger *logrus.Logger) (*Player, error) {
	if !protocol.ValidSlot(slot) {
		return nil, fmt.Errorf("%w: %d", ErrBadSlot, slot)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Player{
		slot: slot,
		conn: conn,
		rec:  rec,
		log:  logger,
		now:  time.Now,
	}, nil
}

// Start identifies the player to the host and begins applying snapshots.
// It returns once the identify message is on the wire; the read loop runs
// until the connection or ctx ends.
func (p *Player) Start(ctx context.Context) error {
	data, err := protocol.Encode(protocol.NewRoleIdentify(protocol.RolePlayer, p.slot))
	if err != nil {
		return err
	}
	if err := p.conn.Send(ctx, data); err != nil {
		return fmt.Errorf("identify: %w", err)
	}
	go p.readLoop(ctx)
	return nil
}

// locked runs fn while holding the client mutex.
func (p *Player) locked(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
}

func (p *Player) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-p.conn.Messages():
			if !ok {
				p.log.Info("connection to host closed")
				return
			}
			p.apply(data)
		}
	}
}

func (p *Player) apply(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		p.log.Debugf("ignoring undecodable host message: %v", err)
		return
	}
	switch m := msg.(type) {
	case *protocol.SyncState:
		p.locked(func() {
			if p.haveState && m.Seq <= p.lastSeq {
				p.log.Debugf("dropping stale snapshot seq=%d last=%d", m.Seq, p.lastSeq)
				return
			}
			p.lastSeq = m.Seq
			p.state = m.State
			p.haveState = true
		})

	case *protocol.NextQuestion:
		p.locked(func() {
			q := m.Question
			p.current = &q
			p.board.Clear()
			p.strokes.Clear()
			p.drawing = false
			p.submitted = false
		})
		p.log.WithField("question", m.QuestionIndex).Info("new question")

	default:
		// Relayed traffic for other slots; a headless player has nothing
		// to render.
	}
}

func (p *Player) send(ctx context.Context, m protocol.Message) error {
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	return p.conn.Send(ctx, data)
}

// PenDown starts a stroke at the given unit-square position.
func (p *Player) PenDown(ctx context.Context, x, y float64) error {
	var blocked bool
	p.locked(func() {
		if p.submitted {
			blocked = true
			return
		}
		p.drawing = true
		p.board.Add(ink.Point{X: x, Y: y, IsNewPath: true})
		p.strokes.BeginStroke()
		p.strokes.AddPoint(ink.TimedPoint{X: x, Y: y, TimeMs: p.now().UnixMilli()})
	})
	if blocked {
		return ErrAlreadySubmitted
	}
	if err := p.send(ctx, protocol.NewIsWriting(p.slot, true)); err != nil {
		p.log.Warnf("is-writing send failed: %v", err)
	}
	return p.send(ctx, protocol.NewDrawPoint(p.slot, ink.Point{X: x, Y: y, IsNewPath: true}))
}

// PenMove extends the current stroke. Without a preceding PenDown it is a
// no-op.
func (p *Player) PenMove(ctx context.Context, x, y float64) error {
	var skip bool
	p.locked(func() {
		if !p.drawing {
			skip = true
			return
		}
		p.board.Add(ink.Point{X: x, Y: y})
		p.strokes.AddPoint(ink.TimedPoint{X: x, Y: y, TimeMs: p.now().UnixMilli()})
	})
	if skip {
		return nil
	}
	return p.send(ctx, protocol.NewDrawPoint(p.slot, ink.Point{X: x, Y: y}))
}

// PenUp finishes the current stroke.
func (p *Player) PenUp(ctx context.Context) error {
	var skip bool
	p.locked(func() {
		if !p.drawing {
			skip = true
			return
		}
		p.drawing = false
		p.strokes.EndStroke()
	})
	if skip {
		return nil
	}
	return p.send(ctx, protocol.NewIsWriting(p.slot, false))
}

// Clear wipes the local canvas and tells every receiver to do the same.
func (p *Player) Clear(ctx context.Context) error {
	p.locked(func() {
		p.board.Clear()
		p.strokes.Clear()
		p.drawing = false
	})
	return p.send(ctx, protocol.NewClearCanvas(p.slot))
}

// Undo removes the last stroke. There is no undo message type: the wire
// sequence is a clear followed by a replay of every retained point, which
// reproduces the full history minus the last stroke on all receivers.
func (p *Player) Undo(ctx context.Context) error {
	var replay []ink.Point
	p.locked(func() {
		p.board.DropLast()
		p.strokes.DropLast()
		p.drawing = false
		replay = p.board.Points()
	})
	if err := p.send(ctx, protocol.NewClearCanvas(p.slot)); err != nil {
		return err
	}
	for _, pt := range replay {
		if err := p.send(ctx, protocol.NewDrawPoint(p.slot, pt)); err != nil {
			return err
		}
	}
	return nil
}

// Submit recognizes the accumulated ink and sends the answer. Only one
// submission may be in flight at a time, and a recognition failure leaves
// every bit of state untouched so the player can redraw or retry.
func (p *Player) Submit(ctx context.Context) (string, error) {
	var (
		snapshot ink.Ink
		guard    error
	)
	p.locked(func() {
		switch {
		case p.submitting:
			guard = ErrSubmissionInFlight
		case p.submitted:
			guard = ErrAlreadySubmitted
		case p.strokes.StrokeCount() == 0:
			guard = ErrNoInk
		default:
			p.submitting = true
			snapshot = p.strokes.Clone()
		}
	})
	if guard != nil {
		return "", guard
	}

	text, err := p.rec.Recognize(ctx, snapshot)
	if err != nil {
		p.locked(func() { p.submitting = false })
		return "", fmt.Errorf("recognize: %w", err)
	}

	sendErr := p.send(ctx, protocol.NewSubmitAnswer(p.slot, text))
	p.locked(func() {
		p.submitting = false
		if sendErr == nil {
			p.submitted = true
		}
	})
	if sendErr != nil {
		return "", fmt.Errorf("submit answer: %w", sendErr)
	}
	p.log.WithField("answer", text).Info("answer submitted")
	return text, nil
}

// Appeal asks the admin to review the submitted answer.
func (p *Player) Appeal(ctx context.Context) error {
	var guard error
	p.locked(func() {
		if !p.submitted {
			guard = ErrNotSubmitted
		}
	})
	if guard != nil {
		return guard
	}
	return p.send(ctx, protocol.NewAppeal(p.slot))
}

// Slot returns the bound player slot.
func (p *Player) Slot() int { return p.slot }

// Submitted reports whether the current question's answer went out.
func (p *Player) Submitted() bool {
	var v bool
	p.locked(func() { v = p.submitted })
	return v
}

// StrokeCount reports the retained stroke count.
func (p *Player) StrokeCount() int {
	var v int
	p.locked(func() { v = p.board.StrokeCount() })
	return v
}

// State returns the last applied snapshot, if any arrived yet.
func (p *Player) State() (protocol.GameState, bool) {
	var (
		st protocol.GameState
		ok bool
	)
	p.locked(func() { st, ok = p.state, p.haveState })
	return st, ok
}

// Question returns the active question as last announced to this player.
func (p *Player) Question() (question.Question, bool) {
	var (
		q  question.Question
		ok bool
	)
	p.locked(func() {
		if p.current != nil {
			q, ok = *p.current, true
		}
	})
	return q, ok
}
