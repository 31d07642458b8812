package boards

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlab/boardroom/internal/models"
	"github.com/driftlab/boardroom/internal/realtime"
)

type memoryRepo struct {
	mu     sync.Mutex
	boards map[uuid.UUID]*models.Board
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{boards: make(map[uuid.UUID]*models.Board)}
}

func (m *memoryRepo) CreateBoard(_ context.Context, board *models.Board) (*models.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *board
	m.boards[board.ID] = &cp
	return &cp, nil
}

func (m *memoryRepo) GetBoard(_ context.Context, id uuid.UUID) (*models.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	board, ok := m.boards[id]
	if !ok {
		return nil, fmt.Errorf("get board: %w", models.ErrNotFound)
	}
	cp := *board
	cp.Collaborators = append([]models.Collaborator(nil), board.Collaborators...)
	return &cp, nil
}

func (m *memoryRepo) ListBoardsByUser(_ context.Context, userID uuid.UUID) ([]*models.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Board
	for _, b := range m.boards {
		if b.UserID == userID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListPublicBoards(_ context.Context, _, _ int32) ([]*models.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Board
	for _, b := range m.boards {
		if b.IsPublic {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memoryRepo) UpdateBoard(_ context.Context, board *models.Board) (*models.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.boards[board.ID]; !ok {
		return nil, fmt.Errorf("update board: %w", models.ErrNotFound)
	}
	cp := *board
	m.boards[board.ID] = &cp
	return &cp, nil
}

func (m *memoryRepo) DeleteBoard(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.boards, id)
	return nil
}

func (m *memoryRepo) AddCollaborator(_ context.Context, boardID, userID uuid.UUID, role models.CollaboratorRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	board, ok := m.boards[boardID]
	if !ok {
		return fmt.Errorf("add collaborator: %w", models.ErrNotFound)
	}
	for i, c := range board.Collaborators {
		if c.UserID == userID {
			board.Collaborators[i].Role = role
			return nil
		}
	}
	board.Collaborators = append(board.Collaborators, models.Collaborator{UserID: userID, Role: role})
	return nil
}

func (m *memoryRepo) RemoveCollaborator(_ context.Context, boardID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	board, ok := m.boards[boardID]
	if !ok {
		return fmt.Errorf("remove collaborator: %w", models.ErrNotFound)
	}
	kept := board.Collaborators[:0]
	for _, c := range board.Collaborators {
		if c.UserID != userID {
			kept = append(kept, c)
		}
	}
	board.Collaborators = kept
	return nil
}

type sentEvent struct {
	room  string
	event *realtime.Event
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	room   []sentEvent
	global []*realtime.Event
}

func (b *recordingBroadcaster) BroadcastToRoom(room string, event *realtime.Event, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.room = append(b.room, sentEvent{room: room, event: event})
}

func (b *recordingBroadcaster) BroadcastAll(event *realtime.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = append(b.global, event)
}

type fixture struct {
	app    *App
	repo   *memoryRepo
	bcast  *recordingBroadcaster
	owner  *models.Identity
	editor *models.Identity
	other  *models.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemoryRepo()
	bcast := &recordingBroadcaster{}
	return &fixture{
		app:    NewApp(repo, bcast),
		repo:   repo,
		bcast:  bcast,
		owner:  &models.Identity{UserID: uuid.New(), Username: "ada"},
		editor: &models.Identity{UserID: uuid.New(), Username: "grace"},
		other:  &models.Identity{UserID: uuid.New(), Username: "mallory"},
	}
}

func (f *fixture) createBoard(t *testing.T, public bool) *models.Board {
	t.Helper()
	board, err := f.app.CreateBoard(context.Background(), f.owner, CreateBoardRequest{
		Title:    "mood board",
		IsPublic: public,
	})
	require.NoError(t, err)
	return board
}

func TestCreateBoardRequiresAuth(t *testing.T) {
	f := newFixture(t)

	_, err := f.app.CreateBoard(context.Background(), nil, CreateBoardRequest{Title: "x"})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestCreateBoardRequiresTitle(t *testing.T) {
	f := newFixture(t)

	_, err := f.app.CreateBoard(context.Background(), f.owner, CreateBoardRequest{Title: "  "})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCreatePublicBoardAnnouncesOnFeed(t *testing.T) {
	f := newFixture(t)

	board := f.createBoard(t, true)

	require.Len(t, f.bcast.global, 1)
	assert.Equal(t, realtime.EventFeedUpdate, f.bcast.global[0].Type)

	var payload realtime.FeedUpdatePayload
	require.NoError(t, json.Unmarshal(f.bcast.global[0].Data, &payload))
	assert.Equal(t, "board_created", payload.Type)
	assert.Equal(t, board.ID, payload.BoardID)
	assert.Equal(t, "ada", payload.Username)
}

func TestCreatePrivateBoardStaysOffFeed(t *testing.T) {
	f := newFixture(t)

	f.createBoard(t, false)

	assert.Empty(t, f.bcast.global)
}

func TestGetBoardDeniesStrangerOnPrivateBoard(t *testing.T) {
	f := newFixture(t)
	board := f.createBoard(t, false)

	_, err := f.app.GetBoard(context.Background(), f.other, board.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestGetPublicBoardAllowsAnonymous(t *testing.T) {
	f := newFixture(t)
	board := f.createBoard(t, true)

	got, err := f.app.GetBoard(context.Background(), nil, board.ID)
	require.NoError(t, err)
	assert.Equal(t, board.ID, got.ID)
}

func TestUpdateBoardMergesFieldsAndAnnounces(t *testing.T) {
	f := newFixture(t)
	board := f.createBoard(t, false)

	title := "renamed"
	updated, err := f.app.UpdateBoard(context.Background(), f.owner, board.ID, UpdateBoardRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.False(t, updated.IsPublic, "untouched field preserved")

	require.Len(t, f.bcast.room, 1)
	assert.Equal(t, realtime.BoardRoom(board.ID), f.bcast.room[0].room)
	assert.Equal(t, realtime.EventBoardUpdate, f.bcast.room[0].event.Type)
}

func TestUpdateBoardByEditorCollaborator(t *testing.T) {
	f := newFixture(t)
	board := f.createBoard(t, false)
	require.NoError(t, f.repo.AddCollaborator(context.Background(), board.ID, f.editor.UserID, models.RoleEditor))

	desc := "now with notes"
	updated, err := f.app.UpdateBoard(context.Background(), f.editor, board.ID, UpdateBoardRequest{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "now with notes", updated.Description)
}

func TestUpdateBoardDeniedForViewer(t *testing.T) {
	f := newFixture(t)
	board := f.createBoard(t, false)
	require.NoError(t, f.repo.AddCollaborator(context.Background(), board.ID, f.other.UserID, models.RoleViewer))

	title := "nope"
	_, err := f.app.UpdateBoard(context.Background(), f.other, board.ID, UpdateBoardRequest{Title: &title})
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Empty(t, f.bcast.room)
}

func TestPublishingBoardHitsFeed(t *testing.T) {
	f := newFixture(t)
	board := f.createBoard(t, false)

	public := true
	_, err := f.app.UpdateBoard(context.Background(), f.owner, board.ID, UpdateBoardRequest{IsPublic: &public})
	require.NoError(t, err)

	require.Len(t, f.bcast.global, 1)
	var payload realtime.FeedUpdatePayload
	require.NoError(t, json.Unmarshal(f.bcast.global[0].Data, &payload))
	assert.Equal(t, "board_published", payload.Type)
}

func TestDeleteBoardOwnerOnly(t *testing.T) {
	f := newFixture(t)
	board := f.createBoard(t, false)
	require.NoError(t, f.repo.AddCollaborator(context.Background(), board.ID, f.editor.UserID, models.RoleAdmin))

	err := f.app.DeleteBoard(context.Background(), f.editor, board.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	require.NoError(t, f.app.DeleteBoard(context.Background(), f.owner, board.ID))
	_, err = f.repo.GetBoard(context.Background(), board.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.Len(t, f.bcast.global, 1)
	assert.Equal(t, realtime.EventBoardDelete, f.bcast.global[0].Type)
}

func TestSetCollaboratorLifecycle(t *testing.T) {
	f := newFixture(t)
	board := f.createBoard(t, false)

	updated, err := f.app.SetCollaborator(context.Background(), f.owner, board.ID, CollaboratorRequest{
		UserID: f.editor.UserID,
		Role:   models.RoleEditor,
	})
	require.NoError(t, err)
	role, ok := updated.CollaboratorRole(f.editor.UserID)
	require.True(t, ok)
	assert.Equal(t, models.RoleEditor, role)

	updated, err = f.app.SetCollaborator(context.Background(), f.owner, board.ID, CollaboratorRequest{
		UserID: f.editor.UserID,
		Remove: true,
	})
	require.NoError(t, err)
	_, ok = updated.CollaboratorRole(f.editor.UserID)
	assert.False(t, ok)
}

func TestSetCollaboratorRejectsOwnerAndBadRole(t *testing.T) {
	f := newFixture(t)
	board := f.createBoard(t, false)

	_, err := f.app.SetCollaborator(context.Background(), f.owner, board.ID, CollaboratorRequest{
		UserID: f.owner.UserID,
		Role:   models.RoleEditor,
	})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.app.SetCollaborator(context.Background(), f.owner, board.ID, CollaboratorRequest{
		UserID: f.editor.UserID,
		Role:   "superuser",
	})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestSetCollaboratorDeniedForNonOwner(t *testing.T) {
	f := newFixture(t)
	board := f.createBoard(t, false)
	require.NoError(t, f.repo.AddCollaborator(context.Background(), board.ID, f.editor.UserID, models.RoleAdmin))

	_, err := f.app.SetCollaborator(context.Background(), f.editor, board.ID, CollaboratorRequest{
		UserID: f.other.UserID,
		Role:   models.RoleViewer,
	})
	assert.ErrorIs(t, err, models.ErrForbidden)
}
