package realtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlab/boardroom/internal/models"
)

func TestRegistryRegisterLookup(t *testing.T) {
	r := NewSessionRegistry()
	identity := &models.Identity{UserID: uuid.New(), Username: "ada", Role: "user"}

	r.Register("c1", identity)

	got, ok := r.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, identity, got)

	_, ok = r.Lookup("unknown")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryDeregisterReturnsRoomSet(t *testing.T) {
	r := NewSessionRegistry()
	r.Register("c1", &models.Identity{UserID: uuid.New(), Username: "ada"})

	r.AddRoom("c1", "board:a")
	r.AddRoom("c1", "board:b")
	r.AddRoom("c1", "user:ada")
	r.RemoveRoom("c1", "board:b")

	rooms := r.Deregister("c1")
	assert.ElementsMatch(t, []string{"board:a", "user:ada"}, rooms)

	// Idempotent: a second deregister returns nothing.
	assert.Nil(t, r.Deregister("c1"))
	assert.Equal(t, 0, r.Len())
}

func TestRegistryRoomTrackingIgnoresUnknownConnections(t *testing.T) {
	r := NewSessionRegistry()

	// Mutations for connections that were never registered must not panic
	// and must not create ghost sessions.
	assert.False(t, r.AddRoom("ghost", "board:a"))
	r.RemoveRoom("ghost", "board:a")
	assert.False(t, r.InRoom("ghost", "board:a"))
	assert.Equal(t, 0, r.Len())
}

func TestRegistryInRoom(t *testing.T) {
	r := NewSessionRegistry()
	r.Register("c1", &models.Identity{UserID: uuid.New(), Username: "ada"})

	assert.False(t, r.InRoom("c1", "board:a"))
	r.AddRoom("c1", "board:a")
	assert.True(t, r.InRoom("c1", "board:a"))
	r.RemoveRoom("c1", "board:a")
	assert.False(t, r.InRoom("c1", "board:a"))
}
