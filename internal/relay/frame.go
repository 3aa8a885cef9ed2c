// internal/relay/frame.go
package relay

import "encoding/json"

// Op discriminates the control frames exchanged between the relay and a
// room's host connection. Peer connections never see frames; they carry
// bare protocol payloads.
type Op string

const (
	// OpRoomClaimed acknowledges a successful room claim to the host.
	OpRoomClaimed Op = "room_claimed"
	// OpPeerOpen tells the host a new peer channel exists.
	OpPeerOpen Op = "peer_open"
	// OpPeerClose tells the host a peer channel went away.
	OpPeerClose Op = "peer_close"
	// OpRelay carries one payload between the host and a named peer, in
	// either direction.
	OpRelay Op = "relay"
)

// Frame is the multiplexing envelope on the host connection. Everything
// for or from a given peer travels in order on that peer's pump, so the
// per-channel ordering the replication protocol relies on is preserved
// end to end.
type Frame struct {
	Op      Op              `json:"op"`
	Room    string          `json:"room,omitempty"`
	Peer    string          `json:"peer,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Close reasons surfaced to connecting sides. The host transport matches
// on ReasonRoomTaken to drive its regenerate-and-retry loop.
const (
	ReasonRoomTaken    = "room taken"
	ReasonRoomNotFound = "room not found"
	ReasonRoomClosed   = "room closed"
)
