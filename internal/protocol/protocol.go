// internal/protocol/protocol.go
//
// Package protocol defines the closed set of messages exchanged between the
// host and its peers. Every message is a flat JSON object discriminated by
// a "type" tag; unknown tags are rejected at decode time rather than
// silently ignored.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/linyc/inkgold/internal/ink"
	"github.com/linyc/inkgold/internal/question"
	"github.com/linyc/inkgold/internal/scoring"
)

// NumPlayers is the fixed number of player slots in a session.
const NumPlayers = 3

// ErrUnknownType is returned by Decode for a tag outside the closed set.
var ErrUnknownType = errors.New("unknown message type")

// Type discriminates the wire messages.
type Type string

const (
	TypeRoleIdentify  Type = "ROLE_IDENTIFY"
	TypeSyncState     Type = "SYNC_STATE"
	TypeNextQuestion  Type = "NEXT_QUESTION"
	TypeDrawPoint     Type = "DRAW_POINT"
	TypeIsWriting     Type = "IS_WRITING"
	TypeClearCanvas   Type = "CLEAR_CANVAS"
	TypeSubmitAnswer  Type = "SUBMIT_ANSWER"
	TypeAppeal        Type = "APPEAL"
	TypeOverrideScore Type = "OVERRIDE_SCORE"
)

// Role names the three peer roles.
type Role string

const (
	RoleHost   Role = "HOST"
	RoleAdmin  Role = "ADMIN"
	RolePlayer Role = "PLAYER"
)

// Message is implemented by every concrete wire message.
type Message interface {
	MessageType() Type
}

// ValidSlot reports whether i names one of the three player slots.
func ValidSlot(i int) bool {
	return i >= 0 && i < NumPlayers
}

// PlayerState is the replicated view of one player slot.
type PlayerState struct {
	ConnectionID  string           `json:"connectionId"`
	Index         int              `json:"index"`
	Score         int              `json:"score"`
	CurrentAnswer string           `json:"currentAnswer"`
	IsCorrect     scoring.Judgment `json:"isCorrect"`
	IsAppealing   bool             `json:"isAppealing"`
	IsSubmitted   bool             `json:"isSubmitted"`
	IsWriting     bool             `json:"isWriting"`
}

// GameState is the full replicated session state. The host builds a fresh
// copy for every broadcast; receivers treat it as read-only.
type GameState struct {
	Players         [NumPlayers]PlayerState `json:"players"`
	CurrentQuestion *question.Question      `json:"currentQuestion"`
	QuestionIndex   int                     `json:"questionIndex"`
	Countdown       int                     `json:"countdown"`
}

// RoleIdentify declares a channel's role, sent once after connecting.
// PlayerIndex is meaningful only for RolePlayer.
type RoleIdentify struct {
	Type        Type `json:"type"`
	Role        Role `json:"role"`
	PlayerIndex int  `json:"playerIndex"`
}

// SyncState carries a full snapshot. Seq increases by one per broadcast;
// receivers drop any snapshot whose Seq is not greater than the last
// applied one, so a late-arriving older snapshot can never regress state.
type SyncState struct {
	Type  Type      `json:"type"`
	Seq   uint64    `json:"seq"`
	State GameState `json:"state"`
}

// NextQuestion deals a new question to the session.
type NextQuestion struct {
	Type          Type              `json:"type"`
	Question      question.Question `json:"question"`
	QuestionIndex int               `json:"questionIndex"`
}

// DrawPoint is one ephemeral ink sample, fanned out verbatim to every
// other peer. Coordinates are normalized to the unit square.
type DrawPoint struct {
	Type        Type    `json:"type"`
	PlayerIndex int     `json:"playerIndex"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	IsNewPath   bool    `json:"isNewPath"`
}

// Point converts the sample to its ink representation.
func (m *DrawPoint) Point() ink.Point {
	return ink.Point{X: m.X, Y: m.Y, IsNewPath: m.IsNewPath}
}

// IsWriting toggles a player's live writing indicator.
type IsWriting struct {
	Type        Type `json:"type"`
	PlayerIndex int  `json:"playerIndex"`
	Writing     bool `json:"writing"`
}

// ClearCanvas discards all accumulated strokes for one player on every
// receiver.
type ClearCanvas struct {
	Type        Type `json:"type"`
	PlayerIndex int  `json:"playerIndex"`
}

// SubmitAnswer carries a player's recognized answer for the active
// question.
type SubmitAnswer struct {
	Type        Type   `json:"type"`
	PlayerIndex int    `json:"playerIndex"`
	Answer      string `json:"answer"`
}

// Appeal requests human review of a player's judgment.
type Appeal struct {
	Type        Type `json:"type"`
	PlayerIndex int  `json:"playerIndex"`
}

// OverrideScore is the admin's judgment override for one slot.
type OverrideScore struct {
	Type        Type `json:"type"`
	PlayerIndex int  `json:"playerIndex"`
	IsCorrect   bool `json:"isCorrect"`
}

func (m *RoleIdentify) MessageType() Type  { return TypeRoleIdentify }
func (m *SyncState) MessageType() Type     { return TypeSyncState }
func (m *NextQuestion) MessageType() Type  { return TypeNextQuestion }
func (m *DrawPoint) MessageType() Type     { return TypeDrawPoint }
func (m *IsWriting) MessageType() Type     { return TypeIsWriting }
func (m *ClearCanvas) MessageType() Type   { return TypeClearCanvas }
func (m *SubmitAnswer) MessageType() Type  { return TypeSubmitAnswer }
func (m *Appeal) MessageType() Type        { return TypeAppeal }
func (m *OverrideScore) MessageType() Type { return TypeOverrideScore }

// NewRoleIdentify builds a tagged ROLE_IDENTIFY message.
func NewRoleIdentify(role Role, playerIndex int) *RoleIdentify {
	return &RoleIdentify{Type: TypeRoleIdentify, Role: role, PlayerIndex: playerIndex}
}

// NewSyncState builds a tagged SYNC_STATE message.
func NewSyncState(seq uint64, state GameState) *SyncState {
	return &SyncState{Type: TypeSyncState, Seq: seq, State: state}
}

// NewNextQuestion builds a tagged NEXT_QUESTION message.
func NewNextQuestion(q question.Question, idx int) *NextQuestion {
	return &NextQuestion{Type: TypeNextQuestion, Question: q, QuestionIndex: idx}
}

// NewDrawPoint builds a tagged DRAW_POINT message.
func NewDrawPoint(slot int, p ink.Point) *DrawPoint {
	return &DrawPoint{Type: TypeDrawPoint, PlayerIndex: slot, X: p.X, Y: p.Y, IsNewPath: p.IsNewPath}
}

// NewIsWriting builds a tagged IS_WRITING message.
func NewIsWriting(slot int, writing bool) *IsWriting {
	return &IsWriting{Type: TypeIsWriting, PlayerIndex: slot, Writing: writing}
}

// NewClearCanvas builds a tagged CLEAR_CANVAS message.
func NewClearCanvas(slot int) *ClearCanvas {
	return &ClearCanvas{Type: TypeClearCanvas, PlayerIndex: slot}
}

// NewSubmitAnswer builds a tagged SUBMIT_ANSWER message.
func NewSubmitAnswer(slot int, answer string) *SubmitAnswer {
	return &SubmitAnswer{Type: TypeSubmitAnswer, PlayerIndex: slot, Answer: answer}
}

// NewAppeal builds a tagged APPEAL message.
func NewAppeal(slot int) *Appeal {
	return &Appeal{Type: TypeAppeal, PlayerIndex: slot}
}

// NewOverrideScore builds a tagged OVERRIDE_SCORE message.
func NewOverrideScore(slot int, correct bool) *OverrideScore {
	return &OverrideScore{Type: TypeOverrideScore, PlayerIndex: slot, IsCorrect: correct}
}

// Encode serializes a message built by one of the New* constructors.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.MessageType(), err)
	}
	return data, nil
}

// Decode parses a wire payload into its concrete message. Payloads with a
// tag outside the closed set fail with ErrUnknownType; malformed JSON
// fails with the unmarshal error.
func Decode(data []byte) (Message, error) {
	var probe struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var m Message
	switch probe.Type {
	case TypeRoleIdentify:
		m = &RoleIdentify{}
	case TypeSyncState:
		m = &SyncState{}
	case TypeNextQuestion:
		m = &NextQuestion{}
	case TypeDrawPoint:
		m = &DrawPoint{}
	case TypeIsWriting:
		m = &IsWriting{}
	case TypeClearCanvas:
		m = &ClearCanvas{}
	case TypeSubmitAnswer:
		m = &SubmitAnswer{}
	case TypeAppeal:
		m = &Appeal{}
	case TypeOverrideScore:
		m = &OverrideScore{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, probe.Type)
	}

	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", probe.Type, err)
	}
	return m, nil
}
