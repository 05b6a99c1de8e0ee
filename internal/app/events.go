package app

import (
	"encoding/json"

	"github.com/dkaras/huddle/internal/domain"
)

// Outbound event names. The client dispatches on the "type" field.
const (
	EventConnected      = "connected"
	EventRoomID         = "room-id"
	EventRoomUpdate     = "room-update"
	EventPeerPrepare    = "peer-prepare"
	EventBeginHandshake = "begin-handshake"
	EventSignalReceived = "signal-received"
	EventError          = "error"
)

// Error codes surfaced to the requesting connection.
const (
	CodeRoomNotFound = "room-not-found"
	CodeRoomFull     = "room-full"
	CodeNotInRoom    = "not-in-room"
	CodeAlreadyBound = "already-in-room"
)

type ConnectedEvent struct {
	Type   string              `json:"type"`
	ConnID domain.ConnectionID `json:"connectionId"`
}

type RoomIDEvent struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
}

type RoomUpdateEvent struct {
	Type    string               `json:"type"`
	Members []domain.Participant `json:"members"`
}

// PeerPrepareEvent primes a pre-existing member to expect an incoming
// handshake from the named connection.
type PeerPrepareEvent struct {
	Type   string              `json:"type"`
	ConnID domain.ConnectionID `json:"connectionId"`
}

// BeginHandshakeEvent directs its recipient to initiate toward the
// named connection. Counterpart of PeerPrepareEvent: the new member
// always initiates, the pre-existing member always prepares.
type BeginHandshakeEvent struct {
	Type   string              `json:"type"`
	ConnID domain.ConnectionID `json:"connectionId"`
}

// SignalReceivedEvent carries an opaque handshake payload, annotated
// with the sender's connection so the recipient can address a reply.
type SignalReceivedEvent struct {
	Type   string              `json:"type"`
	Signal json.RawMessage     `json:"signal"`
	ConnID domain.ConnectionID `json:"connectionId"`
}

type ErrorEvent struct {
	Type string `json:"type"`
	Code string `json:"error"`
}
