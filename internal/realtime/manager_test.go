package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlab/boardroom/internal/models"
)

func testConfig() ConnectionConfig {
	cfg := DefaultConnectionConfig()
	cfg.SendBuffer = 16
	return cfg
}

func startManager(t *testing.T, clock clockwork.Clock) *Manager {
	t.Helper()
	m := NewManager(testConfig(), clock)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Start(ctx)
	return m
}

func admit(m *Manager, username string) *Connection {
	return m.Admit(&models.Identity{UserID: uuid.New(), Username: username, Role: "user"}, nil)
}

// receiveEvent reads the next event off a connection's send queue.
func receiveEvent(t *testing.T, conn *Connection) *Event {
	t.Helper()
	select {
	case data := <-conn.Send:
		var event Event
		require.NoError(t, json.Unmarshal(data, &event))
		return &event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

// expectNoEvent asserts nothing arrives within a short window.
func expectNoEvent(t *testing.T, conn *Connection) {
	t.Helper()
	select {
	case data := <-conn.Send:
		t.Fatalf("unexpected event delivered: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestJoinAnnouncesToOthersNotJoiner(t *testing.T) {
	m := startManager(t, nil)
	boardID := uuid.New()
	room := BoardRoom(boardID)

	u1 := admit(m, "u1")
	m.Join(u1, room)
	// First member: nobody to announce to.
	expectNoEvent(t, u1)

	u2 := admit(m, "u2")
	m.Join(u2, room)

	event := receiveEvent(t, u1)
	assert.Equal(t, EventUserJoined, event.Type)

	var payload UserPresencePayload
	require.NoError(t, json.Unmarshal(event.Data, &payload))
	assert.Equal(t, u2.Identity.UserID, payload.UserID)
	assert.Equal(t, "u2", payload.Username)

	// The joiner never sees its own announcement.
	expectNoEvent(t, u2)
}

func TestLeaveAnnouncesToRemaining(t *testing.T) {
	m := startManager(t, nil)
	room := BoardRoom(uuid.New())

	u1 := admit(m, "u1")
	u2 := admit(m, "u2")
	m.Join(u1, room)
	m.Join(u2, room)
	receiveEvent(t, u1) // user:joined for u2

	m.Leave(u2, room)

	event := receiveEvent(t, u1)
	assert.Equal(t, EventUserLeft, event.Type)

	var payload UserPresencePayload
	require.NoError(t, json.Unmarshal(event.Data, &payload))
	assert.Equal(t, u2.Identity.UserID, payload.UserID)

	// Leaving a room you are not in is a no-op.
	m.Leave(u2, room)
	expectNoEvent(t, u1)
}

func TestBroadcastExcludesSender(t *testing.T) {
	m := startManager(t, nil)
	room := BoardRoom(uuid.New())

	u1 := admit(m, "u1")
	u2 := admit(m, "u2")
	u3 := admit(m, "u3")
	for _, c := range []*Connection{u1, u2, u3} {
		m.Join(c, room)
	}
	receiveEvent(t, u1) // u2 joined
	receiveEvent(t, u1) // u3 joined
	receiveEvent(t, u2) // u3 joined

	event, err := NewEvent(EventImageMoved, ImageMovedPayload{
		ImageID:  uuid.New(),
		Position: models.DefaultPosition(),
		UserID:   u2.Identity.UserID,
	})
	require.NoError(t, err)

	m.BroadcastToRoom(room, event, u2.ID)

	assert.Equal(t, EventImageMoved, receiveEvent(t, u1).Type)
	assert.Equal(t, EventImageMoved, receiveEvent(t, u3).Type)
	expectNoEvent(t, u2)
}

func TestQueuedAnnouncementsKeepEnqueueTimeRecipients(t *testing.T) {
	// Dispatch stays unstarted until every join has been processed, so the
	// announcements sit queued while membership keeps changing underneath.
	m := NewManager(testConfig(), nil)
	room := BoardRoom(uuid.New())

	u1 := admit(m, "u1")
	u2 := admit(m, "u2")
	u3 := admit(m, "u3")
	m.Join(u1, room)
	m.Join(u2, room)
	m.Join(u3, room)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Start(ctx)

	// u1 was a member for both later joins.
	for _, want := range []*Connection{u2, u3} {
		event := receiveEvent(t, u1)
		require.Equal(t, EventUserJoined, event.Type)
		var payload UserPresencePayload
		require.NoError(t, json.Unmarshal(event.Data, &payload))
		assert.Equal(t, want.Identity.UserID, payload.UserID)
	}

	// u2 joined after u1's announcement was queued and must not receive it.
	event := receiveEvent(t, u2)
	require.Equal(t, EventUserJoined, event.Type)
	var payload UserPresencePayload
	require.NoError(t, json.Unmarshal(event.Data, &payload))
	assert.Equal(t, u3.Identity.UserID, payload.UserID)
	expectNoEvent(t, u2)

	// u3 joined last and hears about nobody.
	expectNoEvent(t, u3)
}

func TestJoinAfterDisconnectLeavesNoGhostMember(t *testing.T) {
	m := startManager(t, nil)
	room := BoardRoom(uuid.New())

	u1 := admit(m, "u1")
	m.Disconnect(u1)

	// A board:join racing past a completed disconnect must not resurrect
	// the dead connection as a room member.
	m.Join(u1, room)

	assert.False(t, m.Registry().InRoom(u1.ID, room))
	stats := m.Stats()
	assert.Equal(t, 0, stats["total_connections"])
	assert.Equal(t, 0, stats["active_rooms"])

	// Nothing left for a later disconnect to clean up.
	m.Disconnect(u1)
}

func TestBroadcastToEmptyRoomIsDropped(t *testing.T) {
	m := startManager(t, nil)

	event, err := NewEvent(EventBoardUpdate, BoardUpdatePayload{BoardID: uuid.New()})
	require.NoError(t, err)

	// Must not panic or error; just silently dropped.
	m.BroadcastToRoom(BoardRoom(uuid.New()), event, "")
}

func TestRoomDeliveryOrder(t *testing.T) {
	m := startManager(t, nil)
	room := BoardRoom(uuid.New())

	u1 := admit(m, "u1")
	m.Join(u1, room)

	imageID := uuid.New()
	for i := 0; i < 5; i++ {
		x := float64(i)
		pos := models.DefaultPosition()
		pos.X = x
		event, err := NewEvent(EventImageMoved, ImageMovedPayload{ImageID: imageID, Position: pos})
		require.NoError(t, err)
		m.BroadcastToRoom(room, event, "")
	}

	for i := 0; i < 5; i++ {
		event := receiveEvent(t, u1)
		var payload ImageMovedPayload
		require.NoError(t, json.Unmarshal(event.Data, &payload))
		assert.Equal(t, float64(i), payload.Position.X, "events must arrive in processing order")
	}
}

func TestSendToUserReachesAllTabs(t *testing.T) {
	m := startManager(t, nil)

	identity := &models.Identity{UserID: uuid.New(), Username: "multi", Role: "user"}
	tab1 := m.Admit(identity, nil)
	tab2 := m.Admit(identity, nil)
	other := admit(m, "other")

	event, err := NewEvent(EventImageProcessing, ImageProcessingPayload{JobID: "job-1", Status: "processing", Progress: 40})
	require.NoError(t, err)

	m.SendToUser(identity.UserID, event)

	assert.Equal(t, EventImageProcessing, receiveEvent(t, tab1).Type)
	assert.Equal(t, EventImageProcessing, receiveEvent(t, tab2).Type)
	expectNoEvent(t, other)

	// Sending to a user with no live connections is silently dropped.
	m.SendToUser(uuid.New(), event)
}

func TestBroadcastAll(t *testing.T) {
	m := startManager(t, nil)
	u1 := admit(m, "u1")
	u2 := admit(m, "u2")

	event, err := NewEvent(EventFeedUpdate, FeedUpdatePayload{Type: "new-board", Username: "u1"})
	require.NoError(t, err)
	m.BroadcastAll(event)

	assert.Equal(t, EventFeedUpdate, receiveEvent(t, u1).Type)
	assert.Equal(t, EventFeedUpdate, receiveEvent(t, u2).Type)
}

func TestDisconnectLeavesEveryRoomExactlyOnce(t *testing.T) {
	m := startManager(t, nil)
	roomA := BoardRoom(uuid.New())
	roomB := BoardRoom(uuid.New())

	u1 := admit(m, "u1")
	u2 := admit(m, "u2")
	m.Join(u1, roomA)
	m.Join(u1, roomB)
	m.Join(u2, roomA)
	receiveEvent(t, u1) // u2 joined roomA

	m.Disconnect(u1)

	event := receiveEvent(t, u2)
	assert.Equal(t, EventUserLeft, event.Type)
	var payload UserPresencePayload
	require.NoError(t, json.Unmarshal(event.Data, &payload))
	assert.Equal(t, u1.Identity.UserID, payload.UserID)

	// Deregister is idempotent: a second disconnect emits nothing.
	m.Disconnect(u1)
	expectNoEvent(t, u2)

	// No further room traffic reaches the departed connection.
	ev, err := NewEvent(EventBoardUpdate, BoardUpdatePayload{BoardID: uuid.New()})
	require.NoError(t, err)
	m.BroadcastToRoom(roomA, ev, "")
	receiveEvent(t, u2)
	expectNoEvent(t, u1)

	_, ok := m.Registry().Lookup(u1.ID)
	assert.False(t, ok)
}

func TestHeartbeatTimeoutSweep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cfg := testConfig()
	cfg.HeartbeatTimeout = 30 * time.Second
	cfg.SweepInterval = 10 * time.Second

	m := NewManager(cfg, clock)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Start(ctx)

	// Wait for the dispatch loop to arm the sweep ticker.
	clock.BlockUntil(1)

	room := BoardRoom(uuid.New())
	stale := admit(m, "stale")
	healthy := admit(m, "healthy")
	m.Join(stale, room)
	m.Join(healthy, room)
	receiveEvent(t, stale) // healthy joined

	// Advance past the heartbeat timeout; keep the healthy connection fresh.
	clock.Advance(20 * time.Second)
	healthy.touch()
	clock.Advance(20 * time.Second)

	event := receiveEvent(t, healthy)
	assert.Equal(t, EventUserLeft, event.Type)
	var payload UserPresencePayload
	require.NoError(t, json.Unmarshal(event.Data, &payload))
	assert.Equal(t, stale.Identity.UserID, payload.UserID)

	require.Eventually(t, func() bool {
		_, ok := m.Registry().Lookup(stale.ID)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := m.Registry().Lookup(healthy.ID)
	assert.True(t, ok)
}

func TestStats(t *testing.T) {
	m := startManager(t, nil)
	u1 := admit(m, "u1")
	m.Join(u1, BoardRoom(uuid.New()))

	stats := m.Stats()
	assert.Equal(t, 1, stats["total_connections"])
	// user room + board room
	assert.Equal(t, 2, stats["active_rooms"])
}
