// Package domain contains entity without logic, just meta-data
package domain

import "github.com/google/uuid"

const MaxIdentityLen = 36

type (
	ParticipantID string
	ConnectionID  string
)

// Participant is one connection's membership record within a room.
// It is never mutated after creation, only removed.
type Participant struct {
	ID       ParticipantID `json:"participantId"`
	Identity string        `json:"identity"`
	ConnID   ConnectionID  `json:"connectionId"`
	RoomID   RoomID        `json:"roomId"`
}

// NewParticipant is a tiny helper to avoid ad-hoc struct literals in adapters.
// The identity is an opaque display label; anything over MaxIdentityLen is cut.
func NewParticipant(identity string, connID ConnectionID, roomID RoomID) *Participant {
	if len(identity) > MaxIdentityLen {
		identity = identity[:MaxIdentityLen]
	}
	return &Participant{
		ID:       ParticipantID(uuid.NewString()),
		Identity: identity,
		ConnID:   connID,
		RoomID:   roomID,
	}
}
