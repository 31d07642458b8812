package realtime

import (
	"sync"

	"github.com/driftlab/boardroom/internal/models"
)

// SessionRegistry owns the mapping from an open connection to its
// authenticated identity and the set of rooms the connection currently
// belongs to. It is the single in-memory authority consulted by the
// broadcast router, so membership changes are visible to the very next
// dispatch with no consistency window.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	identity *models.Identity
	rooms    map[string]bool
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*session)}
}

// Register records an authenticated connection. Registering the same
// connection ID twice replaces the previous entry.
func (r *SessionRegistry) Register(connID string, identity *models.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connID] = &session{
		identity: identity,
		rooms:    make(map[string]bool),
	}
}

// Lookup returns the identity bound to a connection.
func (r *SessionRegistry) Lookup(connID string) (*models.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	if !ok {
		return nil, false
	}
	return s.identity, true
}

// Deregister removes the connection and returns the exact set of rooms it
// occupied, so the router can emit a leave notification for each. It is
// idempotent: a second call returns an empty set.
func (r *SessionRegistry) Deregister(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return nil
	}
	delete(r.sessions, connID)

	rooms := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// AddRoom records that the connection joined a room. It reports whether the
// session still exists, so callers never track membership for a connection
// that was already deregistered.
func (r *SessionRegistry) AddRoom(connID, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if ok {
		s.rooms[room] = true
	}
	return ok
}

// RemoveRoom records that the connection left a room.
func (r *SessionRegistry) RemoveRoom(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[connID]; ok {
		delete(s.rooms, room)
	}
}

// InRoom reports whether the connection is currently a member of room.
func (r *SessionRegistry) InRoom(connID, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	return ok && s.rooms[room]
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
