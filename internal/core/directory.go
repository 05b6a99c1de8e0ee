package core

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkaras/huddle/internal/domain"
)

// MaxRoomMembers is the hard room capacity. The join path and the
// existence query both read it, so the two can never disagree.
const MaxRoomMembers = 4

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room full")
)

// roomEntry keeps members in insertion order; join fan-out follows it.
type roomEntry struct {
	room    *domain.Room
	members []*domain.Participant
}

// Directory is the threadsafe in-memory room table plus the
// connection-to-participant index used to resolve disconnects.
// Every compound operation (lookup, mutation, computing what the
// caller should broadcast) runs under one critical section, so the
// two maps never diverge and no room is ever observable empty.
type Directory struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]*roomEntry
	byConn map[domain.ConnectionID]*domain.Participant
}

func NewDirectory() *Directory {
	return &Directory{
		rooms:  make(map[domain.RoomID]*roomEntry),
		byConn: make(map[domain.ConnectionID]*domain.Participant),
	}
}

// RoomStatus is the read-only view served by the existence query.
type RoomStatus struct {
	Exists bool
	Full   bool
}

// JoinResult carries everything the caller needs to fan out after a
// successful join, captured atomically with the mutation.
type JoinResult struct {
	Joined *domain.Participant
	// Peers are the pre-existing members, in insertion order.
	Peers []domain.Participant
	// Members is the full membership after the join, joiner last.
	Members []domain.Participant
}

// Removal reports a completed removal: who left, who is still there.
type Removal struct {
	Removed    domain.Participant
	Remaining  []domain.Participant
	RoomClosed bool
}

// CreateRoom opens a fresh room with the creator as its sole member.
// It never fails.
func (d *Directory) CreateRoom(identity string, connID domain.ConnectionID) *domain.Participant {
	d.mu.Lock()
	defer d.mu.Unlock()

	room := domain.NewRoom()
	p := domain.NewParticipant(identity, connID, room.ID)
	d.rooms[room.ID] = &roomEntry{room: room, members: []*domain.Participant{p}}
	d.byConn[connID] = p
	log.Info().Str("module", "core.directory").Str("room", string(room.ID)).Str("conn", string(connID)).Msg("room created")
	return p
}

// Join adds a participant to an existing room. The capacity check and
// the membership mutation share one critical section so a
// check-then-join race cannot overfill the room.
func (d *Directory) Join(roomID domain.RoomID, identity string, connID domain.ConnectionID) (JoinResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.rooms[roomID]
	if !ok {
		return JoinResult{}, ErrRoomNotFound
	}
	if len(entry.members) >= MaxRoomMembers {
		return JoinResult{}, ErrRoomFull
	}

	peers := snapshot(entry.members)
	p := domain.NewParticipant(identity, connID, roomID)
	entry.members = append(entry.members, p)
	d.byConn[connID] = p
	log.Info().Str("module", "core.directory").Str("room", string(roomID)).Str("conn", string(connID)).Int("members", len(entry.members)).Msg("member joined")
	return JoinResult{Joined: p, Peers: peers, Members: snapshot(entry.members)}, nil
}

// RemoveByConn resolves a connection through the index and detaches
// its participant. An emptied room is deleted in the same critical
// section, never left dangling. A second call for the same connection
// is a miss, not an error.
func (d *Directory) RemoveByConn(connID domain.ConnectionID) (Removal, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.byConn[connID]
	if !ok {
		return Removal{}, false
	}
	delete(d.byConn, connID)

	entry, ok := d.rooms[p.RoomID]
	if !ok {
		// Index pointed at a dead room; should not happen.
		log.Error().Str("module", "core.directory").Str("room", string(p.RoomID)).Msg("participant indexed into missing room")
		return Removal{Removed: *p, RoomClosed: true}, true
	}

	kept := entry.members[:0]
	for _, m := range entry.members {
		if m.ConnID != connID {
			kept = append(kept, m)
		}
	}
	entry.members = kept

	res := Removal{Removed: *p, Remaining: snapshot(entry.members)}
	if len(entry.members) == 0 {
		delete(d.rooms, p.RoomID)
		res.RoomClosed = true
	}
	log.Info().Str("module", "core.directory").Str("room", string(p.RoomID)).Str("conn", string(connID)).Bool("closed", res.RoomClosed).Msg("member removed")
	return res, true
}

// Status reads existence and fullness through the same lock and the
// same capacity constant as Join.
func (d *Directory) Status(roomID domain.RoomID) RoomStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entry, ok := d.rooms[roomID]
	if !ok {
		return RoomStatus{}
	}
	return RoomStatus{Exists: true, Full: len(entry.members) >= MaxRoomMembers}
}

// Members returns the membership snapshot in insertion order.
func (d *Directory) Members(roomID domain.RoomID) ([]domain.Participant, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entry, ok := d.rooms[roomID]
	if !ok {
		return nil, false
	}
	return snapshot(entry.members), true
}

func (d *Directory) RoomCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

func snapshot(members []*domain.Participant) []domain.Participant {
	out := make([]domain.Participant, 0, len(members))
	for _, m := range members {
		out = append(out, *m)
	}
	return out
}
