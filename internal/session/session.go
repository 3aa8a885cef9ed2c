// internal/session/session.go
//
// Package session owns the one canonical game state. A single goroutine
// consumes an inbox of transport callbacks and timer ticks; every mutation
// it applies is followed by a numbered full-state snapshot to every open
// channel. Nothing outside that goroutine ever touches the state, so there
// is exactly one logical writer and no locks.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/linyc/inkgold/internal/ink"
	"github.com/linyc/inkgold/internal/protocol"
	"github.com/linyc/inkgold/internal/question"
	"github.com/linyc/inkgold/internal/scoring"
	"github.com/linyc/inkgold/internal/transport"
)

// DefaultCountdown is the advisory answer timer, in seconds. Reaching
// zero never blocks submission.
const DefaultCountdown = 20

// Config configures a Session.
type Config struct {
	Logger *logrus.Logger
	// CountdownSeconds is the per-question countdown start value.
	// Zero means DefaultCountdown.
	CountdownSeconds int
	// TickInterval is the real-time length of one countdown unit.
	// Zero means one second.
	TickInterval time.Duration
	// Deck backs host-initiated deals. Nil means the built-in bank.
	Deck *question.Deck
}

// Session is the host's canonical state machine plus its replication and
// relay surface. It implements transport.Handler; transport callbacks only
// enqueue work for the Run loop.
type Session struct {
	log  *logrus.Logger
	cfg  Config
	deck *question.Deck

	state protocol.GameState
	seq   uint64
	easel ink.Easel
	roles *roleRegistry

	// channels holds every open channel, identified or not; all of them
	// receive snapshots.
	channels map[string]transport.Channel

	inbox    chan command
	done     chan struct{}
	doneOnce sync.Once
}

type command interface{ isCommand() }

type cmdOpen struct{ ch transport.Channel }
type cmdMessage struct {
	ch      transport.Channel
	payload []byte
}
type cmdClose struct{ ch transport.Channel }
type cmdDeal struct{}
type cmdInspect struct{ reply chan inspection }

type inspection struct {
	state   protocol.GameState
	seq     uint64
	strokes [protocol.NumPlayers][][]ink.Point
}

func (cmdOpen) isCommand()    {}
func (cmdMessage) isCommand() {}
func (cmdClose) isCommand()   {}
func (cmdDeal) isCommand()    {}
func (cmdInspect) isCommand() {}

// New builds an idle session. Call Run to start it.
func New(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.CountdownSeconds == 0 {
		cfg.CountdownSeconds = DefaultCountdown
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Second
	}
	deck := cfg.Deck
	if deck == nil {
		deck = question.NewDeck(nil)
	}

	s := &Session{
		log:      cfg.Logger,
		cfg:      cfg,
		deck:     deck,
		roles:    newRoleRegistry(),
		channels: make(map[string]transport.Channel),
		inbox:    make(chan command, 256),
		done:     make(chan struct{}),
	}
	for i := range s.state.Players {
		s.state.Players[i].Index = i
	}
	return s
}

// Run drives the session until ctx is cancelled. It is the only goroutine
// that reads or writes session state.
func (s *Session) Run(ctx context.Context) error {
	defer s.doneOnce.Do(func() { close(s.done) })

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-s.inbox:
			s.dispatch(cmd)
		case <-ticker.C:
			s.tick()
		}
	}
}

// HandleOpen implements transport.Handler.
func (s *Session) HandleOpen(ch transport.Channel) { s.enqueue(cmdOpen{ch: ch}) }

// HandleMessage implements transport.Handler.
func (s *Session) HandleMessage(ch transport.Channel, payload []byte) {
	s.enqueue(cmdMessage{ch: ch, payload: payload})
}

// HandleClose implements transport.Handler.
func (s *Session) HandleClose(ch transport.Channel) { s.enqueue(cmdClose{ch: ch}) }

// DealNext deals the next question from the host's own deck, exactly as
// if an admin had sent NEXT_QUESTION.
func (s *Session) DealNext() { s.enqueue(cmdDeal{}) }

// State returns a copy of the replicated state and its sequence number.
func (s *Session) State(ctx context.Context) (protocol.GameState, uint64, error) {
	reply := make(chan inspection, 1)
	select {
	case s.inbox <- cmdInspect{reply: reply}:
	case <-s.done:
		return protocol.GameState{}, 0, context.Canceled
	case <-ctx.Done():
		return protocol.GameState{}, 0, ctx.Err()
	}
	select {
	case insp := <-reply:
		return insp.state, insp.seq, nil
	case <-ctx.Done():
		return protocol.GameState{}, 0, ctx.Err()
	}
}

// Strokes returns the host-side mirror of one player's canvas.
func (s *Session) Strokes(ctx context.Context, slot int) ([][]ink.Point, error) {
	if !protocol.ValidSlot(slot) {
		return nil, nil
	}
	reply := make(chan inspection, 1)
	select {
	case s.inbox <- cmdInspect{reply: reply}:
	case <-s.done:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case insp := <-reply:
		return insp.strokes[slot], nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) enqueue(c command) {
	select {
	case s.inbox <- c:
	case <-s.done:
	}
}

func (s *Session) dispatch(c command) {
	switch cmd := c.(type) {
	case cmdOpen:
		s.channels[cmd.ch.ID()] = cmd.ch
		s.log.WithField("channel", cmd.ch.ID()).Info("channel open")
		// Greet with the current state right away. A failed send is fine;
		// the next broadcast covers it.
		s.sendSnapshot(cmd.ch)

	case cmdMessage:
		s.routeMessage(cmd.ch, cmd.payload)

	case cmdClose:
		delete(s.channels, cmd.ch.ID())
		s.roles.drop(cmd.ch.ID())
		s.log.WithField("channel", cmd.ch.ID()).Info("channel closed")

	case cmdDeal:
		q, idx := s.deck.Next()
		s.applyQuestion(q, idx, nil)

	case cmdInspect:
		insp := inspection{state: s.snapshot(), seq: s.seq}
		for i := 0; i < protocol.NumPlayers; i++ {
			insp.strokes[i] = s.easel.Board(i).Strokes()
		}
		cmd.reply <- insp
	}
}

// routeMessage decodes and applies one inbound peer message. Anything
// malformed, unknown, out of range, or out of protocol is dropped with a
// log line; an uncontrolled peer must never be able to crash the host.
func (s *Session) routeMessage(ch transport.Channel, payload []byte) {
	msg, err := protocol.Decode(payload)
	if err != nil {
		s.log.WithField("channel", ch.ID()).Warnf("dropping undecodable message: %v", err)
		return
	}

	if ident, ok := msg.(*protocol.RoleIdentify); ok {
		s.handleIdentify(ch, ident)
		return
	}

	bound, identified := s.roles.lookup(ch.ID())
	if !identified {
		s.log.WithField("channel", ch.ID()).Warnf("dropping %s from unidentified channel", msg.MessageType())
		return
	}

	switch m := msg.(type) {
	case *protocol.NextQuestion:
		if bound.role != protocol.RoleAdmin {
			s.log.WithField("channel", ch.ID()).Warnf("dropping NEXT_QUESTION from role %s", bound.role)
			return
		}
		s.applyQuestion(m.Question, m.QuestionIndex, ch)

	case *protocol.OverrideScore:
		if bound.role != protocol.RoleAdmin {
			s.log.WithField("channel", ch.ID()).Warnf("dropping OVERRIDE_SCORE from role %s", bound.role)
			return
		}
		s.handleOverride(m)

	case *protocol.DrawPoint:
		if !protocol.ValidSlot(m.PlayerIndex) {
			s.log.Warnf("dropping DRAW_POINT for slot %d", m.PlayerIndex)
			return
		}
		s.easel.Add(m.PlayerIndex, m.Point())
		s.fanOut(payload, ch)

	case *protocol.IsWriting:
		if !protocol.ValidSlot(m.PlayerIndex) {
			s.log.Warnf("dropping IS_WRITING for slot %d", m.PlayerIndex)
			return
		}
		s.state.Players[m.PlayerIndex].IsWriting = m.Writing
		s.fanOut(payload, ch)
		s.broadcast()

	case *protocol.ClearCanvas:
		if !protocol.ValidSlot(m.PlayerIndex) {
			s.log.Warnf("dropping CLEAR_CANVAS for slot %d", m.PlayerIndex)
			return
		}
		s.easel.Clear(m.PlayerIndex)
		s.fanOut(payload, ch)

	case *protocol.SubmitAnswer:
		s.handleSubmit(m)

	case *protocol.Appeal:
		s.handleAppeal(m)

	case *protocol.SyncState:
		// Snapshots only ever flow host to peer.
		s.log.WithField("channel", ch.ID()).Warn("dropping inbound SYNC_STATE")
	}
}

// handleIdentify binds a channel to its declared role. A player identify
// rebinds the slot's connection id last-writer-wins, which is how
// reconnection and seat takeover work; there is no ownership token.
func (s *Session) handleIdentify(ch transport.Channel, m *protocol.RoleIdentify) {
	if m.Role == protocol.RolePlayer {
		if !protocol.ValidSlot(m.PlayerIndex) {
			s.log.WithField("channel", ch.ID()).Warnf("dropping player identify for slot %d", m.PlayerIndex)
			return
		}
		s.roles.bind(ch.ID(), protocol.RolePlayer, m.PlayerIndex)
		s.state.Players[m.PlayerIndex].ConnectionID = ch.ID()
		s.log.WithFields(logrus.Fields{"channel": ch.ID(), "slot": m.PlayerIndex}).Info("player identified")
		s.broadcast()
		return
	}
	s.roles.bind(ch.ID(), m.Role, -1)
	s.log.WithFields(logrus.Fields{"channel": ch.ID(), "role": m.Role}).Info("channel identified")
}

// applyQuestion deals a question: transient player fields reset
// unconditionally, all canvases clear, countdown restarts. The raw
// NEXT_QUESTION is also fanned out so player devices can reset their own
// canvases before the snapshot lands.
func (s *Session) applyQuestion(q question.Question, idx int, from transport.Channel) {
	qq := q
	s.state.CurrentQuestion = &qq
	s.state.QuestionIndex = idx
	s.state.Countdown = s.cfg.CountdownSeconds
	for i := range s.state.Players {
		p := &s.state.Players[i]
		p.CurrentAnswer = ""
		p.IsSubmitted = false
		p.IsCorrect = scoring.Unknown
		p.IsAppealing = false
		p.IsWriting = false
	}
	s.easel.ClearAll()

	s.log.WithFields(logrus.Fields{"question": idx, "prompt": q.Prompt}).Info("question dealt")

	if raw, err := protocol.Encode(protocol.NewNextQuestion(q, idx)); err == nil {
		s.fanOut(raw, from)
	}
	s.broadcast()
}

// handleSubmit records a player's answer and judges it automatically.
// A duplicate submit simply overwrites: the scoring delta table makes the
// re-judgment safe (re-affirmation costs nothing, a flip is exactly one
// override step).
func (s *Session) handleSubmit(m *protocol.SubmitAnswer) {
	if !protocol.ValidSlot(m.PlayerIndex) {
		s.log.Warnf("dropping SUBMIT_ANSWER for slot %d", m.PlayerIndex)
		return
	}
	p := &s.state.Players[m.PlayerIndex]
	if p.IsSubmitted {
		s.log.WithField("slot", m.PlayerIndex).Debug("resubmission overwrites prior answer")
	}

	verdict := scoring.Incorrect
	if s.state.CurrentQuestion != nil {
		verdict = scoring.Judge(m.Answer, s.state.CurrentQuestion.Answer)
	}
	p.Score += scoring.Delta(p.IsCorrect, verdict == scoring.Correct)
	p.CurrentAnswer = m.Answer
	p.IsSubmitted = true
	p.IsCorrect = verdict

	s.log.WithFields(logrus.Fields{
		"slot":    m.PlayerIndex,
		"answer":  m.Answer,
		"verdict": verdict.String(),
		"score":   p.Score,
	}).Info("answer submitted")
	s.broadcast()
}

// handleAppeal flags a submitted slot for human review. Appeal before
// submission is meaningless and dropped.
func (s *Session) handleAppeal(m *protocol.Appeal) {
	if !protocol.ValidSlot(m.PlayerIndex) {
		s.log.Warnf("dropping APPEAL for slot %d", m.PlayerIndex)
		return
	}
	p := &s.state.Players[m.PlayerIndex]
	if !p.IsSubmitted {
		s.log.WithField("slot", m.PlayerIndex).Warn("dropping APPEAL before submission")
		return
	}
	p.IsAppealing = true
	s.log.WithField("slot", m.PlayerIndex).Info("appeal raised")
	s.broadcast()
}

// handleOverride applies an admin judgment. The delta depends only on the
// old and new verdicts, so overrides are idempotent and order-tolerant.
func (s *Session) handleOverride(m *protocol.OverrideScore) {
	if !protocol.ValidSlot(m.PlayerIndex) {
		s.log.Warnf("dropping OVERRIDE_SCORE for slot %d", m.PlayerIndex)
		return
	}
	p := &s.state.Players[m.PlayerIndex]
	p.Score += scoring.Delta(p.IsCorrect, m.IsCorrect)
	p.IsCorrect = scoring.FromBool(m.IsCorrect)
	p.IsAppealing = false

	s.log.WithFields(logrus.Fields{
		"slot":    m.PlayerIndex,
		"verdict": p.IsCorrect.String(),
		"score":   p.Score,
	}).Info("judgment overridden")
	s.broadcast()
}

// tick advances the advisory countdown. Zero is a floor, not a trigger:
// nothing else happens when it is reached.
func (s *Session) tick() {
	if s.state.Countdown <= 0 {
		return
	}
	s.state.Countdown--
	s.broadcast()
}

// snapshot returns an immutable copy of the replicated state.
func (s *Session) snapshot() protocol.GameState {
	snap := s.state
	if s.state.CurrentQuestion != nil {
		q := *s.state.CurrentQuestion
		snap.CurrentQuestion = &q
	}
	return snap
}

// broadcast numbers a fresh snapshot and sends it to every open channel,
// admin and players alike. Sends are best effort with no acknowledgment.
func (s *Session) broadcast() {
	s.seq++
	data, err := protocol.Encode(protocol.NewSyncState(s.seq, s.snapshot()))
	if err != nil {
		s.log.Errorf("failed to encode snapshot: %v", err)
		return
	}
	for id, ch := range s.channels {
		if err := ch.Send(context.Background(), data); err != nil {
			s.log.WithField("channel", id).Warnf("snapshot send failed: %v", err)
		}
	}
}

// sendSnapshot sends the current snapshot to a single channel.
func (s *Session) sendSnapshot(ch transport.Channel) {
	data, err := protocol.Encode(protocol.NewSyncState(s.seq, s.snapshot()))
	if err != nil {
		s.log.Errorf("failed to encode snapshot: %v", err)
		return
	}
	if err := ch.Send(context.Background(), data); err != nil {
		s.log.WithField("channel", ch.ID()).Warnf("greeting snapshot send failed: %v", err)
	}
}

// fanOut relays a raw payload verbatim to every open channel except the
// originator.
func (s *Session) fanOut(payload []byte, from transport.Channel) {
	fromID := ""
	if from != nil {
		fromID = from.ID()
	}
	for id, ch := range s.channels {
		if id == fromID {
			continue
		}
		if err := ch.Send(context.Background(), payload); err != nil {
			s.log.WithField("channel", id).Warnf("relay send failed: %v", err)
		}
	}
}
