package boards

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/driftlab/boardroom/internal/access"
	"github.com/driftlab/boardroom/internal/models"
	"github.com/driftlab/boardroom/internal/realtime"
)

// BoardsRepository defines what the app layer needs from the repository.
type BoardsRepository interface {
	CreateBoard(ctx context.Context, board *models.Board) (*models.Board, error)
	GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error)
	ListBoardsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Board, error)
	ListPublicBoards(ctx context.Context, limit, offset int32) ([]*models.Board, error)
	UpdateBoard(ctx context.Context, board *models.Board) (*models.Board, error)
	DeleteBoard(ctx context.Context, id uuid.UUID) error
	AddCollaborator(ctx context.Context, boardID, userID uuid.UUID, role models.CollaboratorRole) error
	RemoveCollaborator(ctx context.Context, boardID, userID uuid.UUID) error
}

// Broadcaster pushes board lifecycle events to live connections.
type Broadcaster interface {
	BroadcastToRoom(room string, event *realtime.Event, excludeConnID string)
	BroadcastAll(event *realtime.Event)
}

// App handles board CRUD and collaborator management.
type App struct {
	repo        BoardsRepository
	broadcaster Broadcaster
}

// NewApp creates a boards App.
func NewApp(repo BoardsRepository, broadcaster Broadcaster) *App {
	return &App{repo: repo, broadcaster: broadcaster}
}

// CreateBoardRequest carries a new board's fields.
type CreateBoardRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	IsPublic    bool       `json:"isPublic"`
	Background  string     `json:"background"`
	Tags        []string   `json:"tags"`
	FolderID    *uuid.UUID `json:"folderId"`
}

// CreateBoard creates a board owned by the actor. Public boards are announced
// on the global activity feed.
func (a *App) CreateBoard(ctx context.Context, actor *models.Identity, req CreateBoardRequest) (*models.Board, error) {
	if actor == nil {
		return nil, fmt.Errorf("%w: authentication required", models.ErrUnauthorized)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", models.ErrValidation)
	}

	board, err := a.repo.CreateBoard(ctx, &models.Board{
		ID:          uuid.New(),
		UserID:      actor.UserID,
		Title:       req.Title,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		Background:  req.Background,
		Tags:        req.Tags,
		FolderID:    req.FolderID,
	})
	if err != nil {
		return nil, err
	}

	if board.IsPublic {
		a.emitFeed("board_created", actor, board)
	}
	return board, nil
}

// GetBoard retrieves a board the actor is allowed to view.
func (a *App) GetBoard(ctx context.Context, actor *models.Identity, id uuid.UUID) (*models.Board, error) {
	board, err := a.repo.GetBoard(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Check(actor, board, access.OpView); err != nil {
		return nil, err
	}
	return board, nil
}

// ListMyBoards retrieves the actor's own boards.
func (a *App) ListMyBoards(ctx context.Context, actor *models.Identity) ([]*models.Board, error) {
	if actor == nil {
		return nil, fmt.Errorf("%w: authentication required", models.ErrUnauthorized)
	}
	return a.repo.ListBoardsByUser(ctx, actor.UserID)
}

// ListPublicBoards retrieves a page of public boards. No authentication
// required.
func (a *App) ListPublicBoards(ctx context.Context, limit, offset int32) ([]*models.Board, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return a.repo.ListPublicBoards(ctx, limit, offset)
}

// UpdateBoardRequest carries a partial board metadata update. Nil fields are
// left unchanged.
type UpdateBoardRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	IsPublic    *bool     `json:"isPublic"`
	Background  *string   `json:"background"`
	Tags        *[]string `json:"tags"`
}

// UpdateBoard applies a metadata update and announces it to the board room.
func (a *App) UpdateBoard(ctx context.Context, actor *models.Identity, id uuid.UUID, req UpdateBoardRequest) (*models.Board, error) {
	board, err := a.repo.GetBoard(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Check(actor, board, access.OpEditMetadata); err != nil {
		return nil, err
	}

	wasPublic := board.IsPublic
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", models.ErrValidation)
		}
		board.Title = *req.Title
	}
	if req.Description != nil {
		board.Description = *req.Description
	}
	if req.IsPublic != nil {
		board.IsPublic = *req.IsPublic
	}
	if req.Background != nil {
		board.Background = *req.Background
	}
	if req.Tags != nil {
		board.Tags = *req.Tags
	}

	updated, err := a.repo.UpdateBoard(ctx, board)
	if err != nil {
		return nil, err
	}
	updated.Collaborators = board.Collaborators

	a.emitBoardUpdate(updated, req)
	if !wasPublic && updated.IsPublic {
		a.emitFeed("board_published", actor, updated)
	}
	return updated, nil
}

// DeleteBoard removes a board. Owner only. Every connected client hears the
// deletion so open tabs can close the board.
func (a *App) DeleteBoard(ctx context.Context, actor *models.Identity, id uuid.UUID) error {
	board, err := a.repo.GetBoard(ctx, id)
	if err != nil {
		return err
	}
	if err := access.Check(actor, board, access.OpDelete); err != nil {
		return err
	}
	if err := a.repo.DeleteBoard(ctx, id); err != nil {
		return err
	}

	event, err := realtime.NewEvent(realtime.EventBoardDelete, realtime.BoardDeletePayload{BoardID: id})
	if err != nil {
		log.Error().Err(err).Msg("encode board:delete event")
		return nil
	}
	a.broadcaster.BroadcastAll(event)
	return nil
}

// CollaboratorRequest adds or removes one collaborator.
type CollaboratorRequest struct {
	UserID uuid.UUID               `json:"userId"`
	Role   models.CollaboratorRole `json:"role"`
	Remove bool                    `json:"remove"`
}

// SetCollaborator grants, changes, or revokes a collaborator role. Owner only.
func (a *App) SetCollaborator(ctx context.Context, actor *models.Identity, boardID uuid.UUID, req CollaboratorRequest) (*models.Board, error) {
	board, err := a.repo.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := access.Check(actor, board, access.OpManageCollaborators); err != nil {
		return nil, err
	}
	if req.UserID == board.UserID {
		return nil, fmt.Errorf("%w: the owner cannot be a collaborator", models.ErrValidation)
	}

	if req.Remove {
		if err := a.repo.RemoveCollaborator(ctx, boardID, req.UserID); err != nil {
			return nil, err
		}
	} else {
		if !req.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", models.ErrValidation, req.Role)
		}
		if err := a.repo.AddCollaborator(ctx, boardID, req.UserID, req.Role); err != nil {
			return nil, err
		}
	}

	return a.repo.GetBoard(ctx, boardID)
}

func (a *App) emitBoardUpdate(board *models.Board, req UpdateBoardRequest) {
	updates, err := json.Marshal(req)
	if err != nil {
		log.Error().Err(err).Msg("encode board update payload")
		return
	}
	event, err := realtime.NewEvent(realtime.EventBoardUpdate, realtime.BoardUpdatePayload{
		BoardID: board.ID,
		Updates: updates,
	})
	if err != nil {
		log.Error().Err(err).Msg("encode board:update event")
		return
	}
	a.broadcaster.BroadcastToRoom(realtime.BoardRoom(board.ID), event, "")
}

func (a *App) emitFeed(feedType string, actor *models.Identity, board *models.Board) {
	event, err := realtime.NewEvent(realtime.EventFeedUpdate, realtime.FeedUpdatePayload{
		Type:       feedType,
		UserID:     actor.UserID,
		Username:   actor.Username,
		BoardID:    board.ID,
		BoardTitle: board.Title,
	})
	if err != nil {
		log.Error().Err(err).Msg("encode feed:update event")
		return
	}
	a.broadcaster.BroadcastAll(event)
}
