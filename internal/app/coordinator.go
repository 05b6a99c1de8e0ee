package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkaras/huddle/internal/core"
	"github.com/dkaras/huddle/internal/domain"
)

var (
	ErrUnknownConn   = errors.New("unknown connection")
	ErrAlreadyInRoom = errors.New("connection already in a room")
	ErrNotInRoom     = errors.New("connection not in a room")
)

type sessionState int

const (
	stateUnbound sessionState = iota
	stateBound
)

// session tracks one live connection through its protocol lifecycle:
// Unbound until create/join succeeds, Bound while in a room. A closed
// connection is simply absent from the table, which is what makes
// duplicate teardown a no-op.
type session struct {
	state       sessionState
	conn        core.SignalConnection
	participant domain.ParticipantID
	room        domain.RoomID
	cancel      context.CancelFunc
}

// Coordinator binds transport events to directory operations and
// decides which relay events to emit and to whom. Its mutex serializes
// lookup, mutation and the broadcast decision as one unit; the
// emission itself happens outside the lock.
type Coordinator struct {
	mu    sync.Mutex
	dir   *core.Directory
	conns map[domain.ConnectionID]*session
}

func NewCoordinator(dir *core.Directory) *Coordinator {
	return &Coordinator{
		dir:   dir,
		conns: make(map[domain.ConnectionID]*session),
	}
}

// delivery is a decided emission, executed after the lock is released.
type delivery struct {
	conn  core.SignalConnection
	event any
}

// Bind registers a freshly accepted connection in the Unbound state
// and tells the client its connection identifier.
func (c *Coordinator) Bind(connID domain.ConnectionID, conn core.SignalConnection, cancel context.CancelFunc) {
	c.mu.Lock()
	c.conns[connID] = &session{state: stateUnbound, conn: conn, cancel: cancel}
	c.mu.Unlock()

	log.Info().Str("module", "app.coordinator").Str("conn", string(connID)).Msg("connection bound")
	c.send(conn, ConnectedEvent{Type: EventConnected, ConnID: connID})
}

// CreateRoom opens a new room with the caller as its sole member and
// emits room-id followed by the initial room-update to the creator.
func (c *Coordinator) CreateRoom(connID domain.ConnectionID, identity string) error {
	c.mu.Lock()
	sess, ok := c.conns[connID]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownConn
	}
	if sess.state != stateUnbound {
		conn := sess.conn
		c.mu.Unlock()
		c.send(conn, ErrorEvent{Type: EventError, Code: CodeAlreadyBound})
		return ErrAlreadyInRoom
	}

	p := c.dir.CreateRoom(identity, connID)
	sess.state = stateBound
	sess.participant = p.ID
	sess.room = p.RoomID
	conn := sess.conn
	c.mu.Unlock()

	// Creator is the sole member, no fan-out yet.
	c.send(conn, RoomIDEvent{Type: EventRoomID, RoomID: p.RoomID})
	c.send(conn, RoomUpdateEvent{Type: EventRoomUpdate, Members: []domain.Participant{*p}})
	return nil
}

// JoinRoom adds the caller to an existing room. Pre-existing members
// each get one peer-prepare naming the joiner, then everyone including
// the joiner gets the new membership list.
func (c *Coordinator) JoinRoom(connID domain.ConnectionID, identity string, roomID domain.RoomID) error {
	c.mu.Lock()
	sess, ok := c.conns[connID]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownConn
	}
	if sess.state != stateUnbound {
		conn := sess.conn
		c.mu.Unlock()
		c.send(conn, ErrorEvent{Type: EventError, Code: CodeAlreadyBound})
		return ErrAlreadyInRoom
	}

	res, err := c.dir.Join(roomID, identity, connID)
	if err != nil {
		conn := sess.conn
		c.mu.Unlock()
		code := CodeRoomNotFound
		if errors.Is(err, core.ErrRoomFull) {
			code = CodeRoomFull
		}
		c.send(conn, ErrorEvent{Type: EventError, Code: code})
		return err
	}

	sess.state = stateBound
	sess.participant = res.Joined.ID
	sess.room = roomID

	out := make([]delivery, 0, 2*len(res.Members))
	for _, peer := range res.Peers {
		if target, ok := c.conns[peer.ConnID]; ok {
			out = append(out, delivery{target.conn, PeerPrepareEvent{Type: EventPeerPrepare, ConnID: connID}})
		}
	}
	update := RoomUpdateEvent{Type: EventRoomUpdate, Members: res.Members}
	for _, m := range res.Members {
		if target, ok := c.conns[m.ConnID]; ok {
			out = append(out, delivery{target.conn, update})
		}
	}
	c.mu.Unlock()

	c.deliver(out)
	return nil
}

// RelaySignal forwards an opaque handshake payload verbatim to the
// target connection. A missing target is an expected race, not an
// error: the target has disconnected and will trigger its own cleanup.
func (c *Coordinator) RelaySignal(connID, target domain.ConnectionID, signal json.RawMessage) error {
	return c.forward(connID, target, func(sender domain.ConnectionID) any {
		return SignalReceivedEvent{Type: EventSignalReceived, Signal: signal, ConnID: sender}
	})
}

// InitConnection directs the target to begin the handshake toward the
// caller. The newly joined member always initiates, so pre-existing
// members call this once per peer-prepare they received.
func (c *Coordinator) InitConnection(connID, target domain.ConnectionID) error {
	return c.forward(connID, target, func(sender domain.ConnectionID) any {
		return BeginHandshakeEvent{Type: EventBeginHandshake, ConnID: sender}
	})
}

func (c *Coordinator) forward(connID, target domain.ConnectionID, event func(domain.ConnectionID) any) error {
	c.mu.Lock()
	sess, ok := c.conns[connID]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownConn
	}
	if sess.state != stateBound {
		conn := sess.conn
		c.mu.Unlock()
		c.send(conn, ErrorEvent{Type: EventError, Code: CodeNotInRoom})
		return ErrNotInRoom
	}
	tgt, ok := c.conns[target]
	c.mu.Unlock()
	if !ok {
		log.Debug().Str("module", "app.coordinator").Str("conn", string(connID)).Str("target", string(target)).Msg("relay target gone, dropped")
		return nil
	}

	c.send(tgt.conn, event(connID))
	return nil
}

// Disconnect tears a connection down: removes its participant, updates
// whoever remains in the room, and cancels the connection context.
// Firing it twice for the same connection is a no-op the second time;
// explicit leave and transport teardown both land here.
func (c *Coordinator) Disconnect(connID domain.ConnectionID) {
	c.mu.Lock()
	sess, ok := c.conns[connID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.conns, connID)

	var out []delivery
	if sess.state == stateBound {
		if res, removed := c.dir.RemoveByConn(connID); removed && !res.RoomClosed {
			update := RoomUpdateEvent{Type: EventRoomUpdate, Members: res.Remaining}
			for _, m := range res.Remaining {
				if target, ok := c.conns[m.ConnID]; ok {
					out = append(out, delivery{target.conn, update})
				}
			}
		}
	}
	c.mu.Unlock()

	log.Info().Str("module", "app.coordinator").Str("conn", string(connID)).Msg("connection closed")
	c.deliver(out)
	if sess.cancel != nil {
		sess.cancel()
	}
}

func (c *Coordinator) deliver(out []delivery) {
	for _, d := range out {
		c.send(d.conn, d.event)
	}
}

func (c *Coordinator) send(conn core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Msg("marshal event")
		return
	}
	if err := conn.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "app.coordinator").Msg("event dropped")
	}
}
