package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlab/boardroom/internal/auth"
	"github.com/driftlab/boardroom/internal/models"
	"github.com/driftlab/boardroom/internal/realtime"
)

// relayMover stands in for the reconciler: it applies patches to a canonical
// map and broadcasts the result to the board room, excluding the originator.
type relayMover struct {
	mu      sync.Mutex
	manager *realtime.Manager
	boardID uuid.UUID
	pos     map[uuid.UUID]models.Position
	err     error
}

func (r *relayMover) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *relayMover) ApplyMove(_ context.Context, actor *models.Identity, connID string, imageID uuid.UUID, patch models.PositionPatch) (*models.Position, error) {
	r.mu.Lock()
	if r.err != nil {
		err := r.err
		r.mu.Unlock()
		return nil, err
	}
	pos := r.pos[imageID]
	patch.Apply(&pos)
	r.pos[imageID] = pos
	r.mu.Unlock()

	event, err := realtime.NewEvent(realtime.EventImageMoved, realtime.ImageMovedPayload{
		ImageID:  imageID,
		Position: pos,
		UserID:   actor.UserID,
	})
	if err != nil {
		return nil, err
	}
	r.manager.BroadcastToRoom(realtime.BoardRoom(r.boardID), event, connID)
	return &pos, nil
}

type staticBoardLoader struct {
	board *models.Board
}

func (s *staticBoardLoader) GetBoard(_ context.Context, id uuid.UUID) (*models.Board, error) {
	if id != s.board.ID {
		return nil, models.ErrNotFound
	}
	return s.board, nil
}

type adapterFixture struct {
	server *httptest.Server
	tokens *auth.HMACTokenService
	board  *models.Board
	image  *models.Image
	mover  *relayMover
}

func newAdapterFixture(t *testing.T) *adapterFixture {
	t.Helper()

	tokens, err := auth.NewHMACTokenService("adapter-test-secret", time.Hour, nil)
	require.NoError(t, err)

	cfg := realtime.DefaultConnectionConfig()
	cfg.SendBuffer = 16
	manager := realtime.NewManager(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go manager.Start(ctx)

	boardID := uuid.New()
	board := &models.Board{ID: boardID, UserID: uuid.New(), Title: "shared", IsPublic: true}
	image := &models.Image{ID: uuid.New(), BoardID: boardID, Position: models.DefaultPosition()}

	mover := &relayMover{
		manager: manager,
		boardID: boardID,
		pos:     map[uuid.UUID]models.Position{image.ID: image.Position},
	}

	handler := realtime.NewWebSocketHandler(manager, tokens, &staticBoardLoader{board: board}, mover)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.HandleFunc("GET /api/boards/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{
			"board":  board,
			"images": []*models.Image{image},
		}); err != nil {
			t.Errorf("encode snapshot: %v", err)
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &adapterFixture{server: server, tokens: tokens, board: board, image: image, mover: mover}
}

// connect joins a fresh adapter to the fixture board and returns it together
// with a channel of every event its read loop processes.
func (f *adapterFixture) connect(t *testing.T, username string) (*Adapter, chan *realtime.Event) {
	t.Helper()

	token, err := f.tokens.Issue(&models.User{ID: uuid.New(), Username: username, Role: "user"})
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	a := NewAdapter(f.server.URL, wsURL, token)
	events := make(chan *realtime.Event, 32)
	a.OnEvent = func(e *realtime.Event) { events <- e }

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Join(ctx, f.board.ID))
	t.Cleanup(a.Leave)
	return a, events
}

func waitForEvent(t *testing.T, events <-chan *realtime.Event, eventType realtime.EventType) *realtime.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Type == eventType {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", eventType)
			return nil
		}
	}
}

func TestAcceptedMoveThenRemoteUpdate(t *testing.T) {
	f := newAdapterFixture(t)

	a1, events1 := f.connect(t, "editor1")
	a2, _ := f.connect(t, "editor2")
	waitForEvent(t, events1, realtime.EventUserJoined)

	x1 := 111.0
	require.NoError(t, a1.MoveImage(f.image.ID, models.PositionPatch{X: &x1}))
	waitForEvent(t, events1, realtime.EventMoveAccepted)

	pos, ok := a1.Mirror().Position(f.image.ID)
	require.True(t, ok)
	assert.Equal(t, 111.0, pos.X)

	// The second editor moves the same image. With the first move settled
	// and no drag in flight, the mirror follows the canonical broadcast.
	x2 := 999.0
	require.NoError(t, a2.MoveImage(f.image.ID, models.PositionPatch{X: &x2}))
	waitForEvent(t, events1, realtime.EventImageMoved)

	pos, ok = a1.Mirror().Position(f.image.ID)
	require.True(t, ok)
	assert.Equal(t, 999.0, pos.X)
}

func TestRejectedMoveRollsBackToAcceptedBaseline(t *testing.T) {
	f := newAdapterFixture(t)

	a1, events1 := f.connect(t, "editor1")

	x1 := 111.0
	require.NoError(t, a1.MoveImage(f.image.ID, models.PositionPatch{X: &x1}))
	waitForEvent(t, events1, realtime.EventMoveAccepted)

	// The next move is rejected; the field must settle on the last accepted
	// value, not the snapshot the board was joined with.
	f.mover.setErr(models.ErrForbidden)
	x2 := 500.0
	require.NoError(t, a1.MoveImage(f.image.ID, models.PositionPatch{X: &x2}))
	waitForEvent(t, events1, realtime.EventError)

	pos, ok := a1.Mirror().Position(f.image.ID)
	require.True(t, ok)
	assert.Equal(t, 111.0, pos.X)
}
