// Package realtime is the persistent-connection core: the session registry,
// the room-scoped broadcast router and the websocket transport they ride on.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/driftlab/boardroom/internal/models"
)

// ConnectionConfig holds tuning for websocket connections and liveness.
type ConnectionConfig struct {
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	HeartbeatTimeout time.Duration
	SweepInterval    time.Duration
	MaxMessageSize   int64
	SendBuffer       int
	ReadBufferSize   int
	WriteBufferSize  int
	CheckOrigin      func(r *http.Request) bool
}

// DefaultConnectionConfig returns the defaults used outside tests.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		HeartbeatTimeout: 90 * time.Second,
		SweepInterval:    30 * time.Second,
		MaxMessageSize:   4096,
		SendBuffer:       256,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
}

// broadcastMessage carries a queued event together with its recipients.
// Recipients are resolved under the membership lock when the event is
// enqueued, so joins and leaves that happen while the event sits in the
// queue cannot change who receives it.
type broadcastMessage struct {
	room    string // for logging only
	event   *Event
	targets []*Connection
}

// MessageHandler receives parsed client messages from connection read pumps.
type MessageHandler func(conn *Connection, data []byte)

// Manager is the room-scoped broadcast router. It owns room membership and
// event dispatch behind one mutex, so a membership change is visible to the
// very next broadcast. Construct one per process (or per test) and pass it
// by reference; there is deliberately no package-level instance.
type Manager struct {
	registry *SessionRegistry

	mu    sync.RWMutex
	rooms map[string]map[*Connection]bool
	conns map[string]*Connection

	broadcastCh chan broadcastMessage
	config      ConnectionConfig
	clock       clockwork.Clock

	onMessage MessageHandler
}

// NewManager creates a router with the given configuration. A nil clock
// means the real one.
func NewManager(config ConnectionConfig, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		registry:    NewSessionRegistry(),
		rooms:       make(map[string]map[*Connection]bool),
		conns:       make(map[string]*Connection),
		broadcastCh: make(chan broadcastMessage, 1024),
		config:      config,
		clock:       clock,
	}
}

// Registry exposes the session registry.
func (m *Manager) Registry() *SessionRegistry {
	return m.registry
}

// SetMessageHandler installs the handler invoked for every inbound client
// message. Must be called before any connection is admitted.
func (m *Manager) SetMessageHandler(h MessageHandler) {
	m.onMessage = h
}

func (m *Manager) dispatchClientMessage(conn *Connection, data []byte) {
	if m.onMessage != nil {
		m.onMessage(conn, data)
	}
}

// Start runs the dispatch loop and the liveness sweep until ctx is done.
// Events enqueued for a single room are delivered in the order they were
// processed here; there is no ordering across rooms.
func (m *Manager) Start(ctx context.Context) {
	log.Info().Msg("broadcast router started")
	ticker := m.clock.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("broadcast router shutting down")
			return
		case msg := <-m.broadcastCh:
			m.deliver(msg)
		case <-ticker.Chan():
			m.sweepStale()
		}
	}
}

// Admit registers an already-authenticated connection with the router and
// joins it to its own private user room. The returned Connection is live;
// pumps must be started by the transport layer.
func (m *Manager) Admit(identity *models.Identity, ws *websocket.Conn) *Connection {
	conn := newConnection(uuid.New().String(), identity, ws, m)
	m.registry.Register(conn.ID, identity)

	m.mu.Lock()
	m.conns[conn.ID] = conn
	m.mu.Unlock()

	// Every connection sits in its user's private room for targeted
	// delivery (job progress, multi-tab notifications).
	m.addMembership(conn, UserRoom(identity.UserID))

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", identity.UserID.String()).
		Str("username", identity.Username).
		Msg("connection admitted")
	return conn
}

// Join adds the connection to a room. Joining a board room announces the
// newcomer to every other current member, never to the joiner itself.
func (m *Manager) Join(conn *Connection, room string) {
	if !m.addMembership(conn, room) {
		return
	}

	if isBoardRoom(room) {
		event, err := NewEvent(EventUserJoined, UserPresencePayload{
			UserID:   conn.Identity.UserID,
			Username: conn.Identity.Username,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to build user:joined event")
			return
		}
		m.BroadcastToRoom(room, event, conn.ID)
	}
}

// Leave removes the connection from a room and announces the departure to
// the remaining members of board rooms.
func (m *Manager) Leave(conn *Connection, room string) {
	if !m.removeMembership(conn, room) {
		return
	}

	if isBoardRoom(room) {
		event, err := NewEvent(EventUserLeft, UserPresencePayload{
			UserID:   conn.Identity.UserID,
			Username: conn.Identity.Username,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to build user:left event")
			return
		}
		m.BroadcastToRoom(room, event, conn.ID)
	}
}

// Disconnect deregisters the connection entirely, leaving every room it
// occupied with the usual departure notifications. Idempotent; safe to call
// from both the read pump and the liveness sweep.
func (m *Manager) Disconnect(conn *Connection) {
	rooms := m.registry.Deregister(conn.ID)
	if rooms == nil {
		return
	}

	m.mu.Lock()
	delete(m.conns, conn.ID)
	for _, room := range rooms {
		if members, ok := m.rooms[room]; ok {
			delete(members, conn)
			if len(members) == 0 {
				delete(m.rooms, room)
			}
		}
	}
	m.mu.Unlock()

	for _, room := range rooms {
		if !isBoardRoom(room) {
			continue
		}
		event, err := NewEvent(EventUserLeft, UserPresencePayload{
			UserID:   conn.Identity.UserID,
			Username: conn.Identity.Username,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to build user:left event")
			continue
		}
		m.BroadcastToRoom(room, event, conn.ID)
	}

	conn.close()
	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.Identity.UserID.String()).
		Int("rooms_left", len(rooms)).
		Msg("connection deregistered")
}

// BroadcastToRoom queues an event for every current member of a room except
// the optional excluded connection. The recipient set is fixed here, not at
// delivery, so a member that joins after this call never sees the event. A
// room with no members drops the event silently.
func (m *Manager) BroadcastToRoom(room string, event *Event, excludeConnID string) {
	m.mu.RLock()
	members := m.rooms[room]
	targets := make([]*Connection, 0, len(members))
	for conn := range members {
		if conn.ID == excludeConnID {
			continue
		}
		targets = append(targets, conn)
	}
	m.mu.RUnlock()

	m.enqueue(broadcastMessage{room: room, event: event, targets: targets})
}

// SendToUser queues an event for every live connection of one user.
func (m *Manager) SendToUser(userID uuid.UUID, event *Event) {
	m.BroadcastToRoom(UserRoom(userID), event, "")
}

// BroadcastAll queues an event for every connection in the process, used for
// the global activity feed.
func (m *Manager) BroadcastAll(event *Event) {
	m.mu.RLock()
	targets := make([]*Connection, 0, len(m.conns))
	for _, conn := range m.conns {
		targets = append(targets, conn)
	}
	m.mu.RUnlock()

	m.enqueue(broadcastMessage{room: "*", event: event, targets: targets})
}

func (m *Manager) enqueue(msg broadcastMessage) {
	if len(msg.targets) == 0 {
		return
	}
	select {
	case m.broadcastCh <- msg:
	default:
		log.Warn().
			Str("room", msg.room).
			Str("event_type", string(msg.event.Type)).
			Msg("broadcast channel full, dropping event")
	}
}

func (m *Manager) deliver(msg broadcastMessage) {
	data, err := marshalEvent(msg.event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal broadcast event")
		return
	}

	for _, conn := range msg.targets {
		select {
		case conn.Send <- data:
		default:
			// Slow or dead client; drop it rather than stall the room.
			log.Warn().
				Str("connection_id", conn.ID).
				Str("user_id", conn.Identity.UserID.String()).
				Msg("send buffer full, dropping connection")
			go m.Disconnect(conn)
		}
	}

	log.Debug().
		Str("event_type", string(msg.event.Type)).
		Str("room", msg.room).
		Int("connections", len(msg.targets)).
		Msg("event delivered")
}

// sweepStale force-disconnects connections whose last heartbeat is older
// than the configured timeout, so no ghost member lingers in a room after
// abrupt network loss.
func (m *Manager) sweepStale() {
	cutoff := m.clock.Now().Add(-m.config.HeartbeatTimeout)

	m.mu.RLock()
	var stale []*Connection
	for _, conn := range m.conns {
		if conn.LastPing().Before(cutoff) {
			stale = append(stale, conn)
		}
	}
	m.mu.RUnlock()

	for _, conn := range stale {
		log.Warn().
			Str("connection_id", conn.ID).
			Time("last_ping", conn.LastPing()).
			Msg("heartbeat timeout, disconnecting")
		m.Disconnect(conn)
	}
}

// Stats returns counts of live connections and occupied rooms.
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	roomCounts := make(map[string]int, len(m.rooms))
	for room, members := range m.rooms {
		roomCounts[room] = len(members)
	}
	return map[string]any{
		"total_connections": len(m.conns),
		"active_rooms":      len(m.rooms),
		"room_members":      roomCounts,
	}
}

// addMembership returns false when the connection is no longer registered,
// which happens when a disconnect races the join. Room state is only touched
// for live sessions so a dead connection cannot reappear as a member.
func (m *Manager) addMembership(conn *Connection, room string) bool {
	m.mu.Lock()
	if !m.registry.AddRoom(conn.ID, room) {
		m.mu.Unlock()
		log.Debug().
			Str("connection_id", conn.ID).
			Str("room", room).
			Msg("join ignored, connection already deregistered")
		return false
	}
	if m.rooms[room] == nil {
		m.rooms[room] = make(map[*Connection]bool)
	}
	m.rooms[room][conn] = true
	m.mu.Unlock()

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room", room).
		Msg("joined room")
	return true
}

// removeMembership returns false when the connection was not a member.
func (m *Manager) removeMembership(conn *Connection, room string) bool {
	m.mu.Lock()
	members, ok := m.rooms[room]
	if ok {
		_, ok = members[conn]
		if ok {
			delete(members, conn)
			if len(members) == 0 {
				delete(m.rooms, room)
			}
		}
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	m.registry.RemoveRoom(conn.ID, room)

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room", room).
		Msg("left room")
	return true
}

func isBoardRoom(room string) bool {
	return strings.HasPrefix(room, "board:")
}

func marshalEvent(event *Event) ([]byte, error) {
	return json.Marshal(event)
}
