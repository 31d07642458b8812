package client

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlab/boardroom/internal/models"
)

func seedOne(t *testing.T) (*Mirror, uuid.UUID) {
	t.Helper()
	m := NewMirror()
	id := uuid.New()
	m.Seed([]*models.Image{{ID: id, Position: models.DefaultPosition()}})
	return m, id
}

func TestApplyIsVisibleImmediately(t *testing.T) {
	m, id := seedOne(t)

	x := 150.0
	require.True(t, m.Apply("req-1", id, models.PositionPatch{X: &x}))

	pos, ok := m.Position(id)
	require.True(t, ok)
	assert.Equal(t, 150.0, pos.X)
	assert.Equal(t, 200.0, pos.Height, "untouched fields keep their values")
}

func TestApplyUnknownImage(t *testing.T) {
	m := NewMirror()
	x := 1.0
	assert.False(t, m.Apply("req-1", uuid.New(), models.PositionPatch{X: &x}))
}

func TestRollbackRestoresOnlyTouchedFields(t *testing.T) {
	m, id := seedOne(t)

	x, rot := 150.0, 45.0
	require.True(t, m.Apply("req-1", id, models.PositionPatch{X: &x, Rotation: &rot}))
	m.Rollback("req-1")

	pos, _ := m.Position(id)
	assert.Equal(t, models.DefaultPosition(), pos)
}

func TestConfirmPromotesToBaseline(t *testing.T) {
	m, id := seedOne(t)

	x := 150.0
	require.True(t, m.Apply("req-1", id, models.PositionPatch{X: &x}))
	m.Confirm("req-1")

	// A later rejected move reverts to the confirmed 150, not the seed 0.
	x2 := 400.0
	require.True(t, m.Apply("req-2", id, models.PositionPatch{X: &x2}))
	m.Rollback("req-2")

	pos, _ := m.Position(id)
	assert.Equal(t, 150.0, pos.X)
}

func TestRollbackSkipsFieldsWithNewerInflightMove(t *testing.T) {
	m, id := seedOne(t)

	x1 := 100.0
	require.True(t, m.Apply("req-1", id, models.PositionPatch{X: &x1}))
	x2 := 200.0
	require.True(t, m.Apply("req-2", id, models.PositionPatch{X: &x2}))

	// The older move fails while the newer one is still outstanding; the
	// user's latest drag stays on screen.
	m.Rollback("req-1")
	pos, _ := m.Position(id)
	assert.Equal(t, 200.0, pos.X)

	// When the newer one also fails, everything reverts.
	m.Rollback("req-2")
	pos, _ = m.Position(id)
	assert.Equal(t, 0.0, pos.X)
}

func TestApplyRemoteMergesFieldLevel(t *testing.T) {
	m, id := seedOne(t)

	remote := models.DefaultPosition()
	remote.Y = 75.0
	m.ApplyRemote(id, remote)

	pos, _ := m.Position(id)
	assert.Equal(t, 75.0, pos.Y)
}

func TestApplyRemoteDoesNotClobberInflightDrag(t *testing.T) {
	m, id := seedOne(t)

	x := 300.0
	require.True(t, m.Apply("req-1", id, models.PositionPatch{X: &x}))

	remote := models.DefaultPosition()
	remote.X = 10.0
	remote.Y = 60.0
	m.ApplyRemote(id, remote)

	pos, _ := m.Position(id)
	assert.Equal(t, 300.0, pos.X, "in-flight field keeps the local value")
	assert.Equal(t, 60.0, pos.Y, "settled field follows the server")

	// Once the drag resolves as rejected, the server's value wins.
	m.Rollback("req-1")
	pos, _ = m.Position(id)
	assert.Equal(t, 10.0, pos.X)
}

func TestApplyRemoteUnseenImageCreatesEntry(t *testing.T) {
	m := NewMirror()
	id := uuid.New()

	remote := models.Position{X: 5, Y: 6, Width: 100, Height: 80, ZIndex: 2, Rotation: 0}
	m.ApplyRemote(id, remote)

	pos, ok := m.Position(id)
	require.True(t, ok)
	assert.Equal(t, remote, pos)
}

func TestRemoveDropsPendingState(t *testing.T) {
	m, id := seedOne(t)

	x := 10.0
	require.True(t, m.Apply("req-1", id, models.PositionPatch{X: &x}))
	m.Remove(id)

	assert.Equal(t, 0, m.Len())
	// Resolving the orphaned request is a no-op, not a panic.
	m.Rollback("req-1")
	m.Confirm("req-1")
}
