package images

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

// ImagesRepository defines what the app layer needs from the repository.
type ImagesRepository interface {
	CreateImage(ctx context.Context, image *models.Image) (*models.Image, error)
	GetImage(ctx context.Context, id uuid.UUID) (*models.Image, error)
	ListImagesByBoard(ctx context.Context, boardID uuid.UUID) ([]*models.Image, error)
	UpdateImageMetadata(ctx context.Context, image *models.Image) (*models.Image, error)
	DeleteImage(ctx context.Context, id uuid.UUID) error
}

// BoardGetter loads boards for authorization context.
type BoardGetter interface {
	GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error)
}

// Broadcaster pushes image lifecycle events to live connections.
type Broadcaster interface {
	BroadcastToRoom(room string, event *realtime.Event, excludeConnID string)
	BroadcastAll(event *realtime.Event)
}

// Invalidator drops cached canonical position state when an image goes away.
type Invalidator interface {
	Invalidate(imageID uuid.UUID)
}

// App handles image CRUD. Position writes are not handled here; they go
// through the reconciler.
type App struct {
	repo        ImagesRepository
	boards      BoardGetter
	broadcaster Broadcaster
	invalidator Invalidator
}

// NewApp creates an images App.
func NewApp(repo ImagesRepository, boards BoardGetter, broadcaster Broadcaster, invalidator Invalidator) *App {
	return &App{repo: repo, boards: boards, broadcaster: broadcaster, invalidator: invalidator}
}

// CreateImageRequest carries a new image record.
type CreateImageRequest struct {
	BoardID       uuid.UUID             `json:"boardId"`
	URL           string                `json:"url"`
	Thumbnail     string                `json:"thumbnail"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Position      *models.PositionPatch `json:"position"`
	Tags          []string              `json:"tags"`
	IsAIGenerated bool                  `json:"isAIGenerated"`
	Metadata      json.RawMessage       `json:"metadata"`
}

// CreateImage adds an image to a board and announces it to the board room.
// Omitted position fields take the defaults.
func (a *App) CreateImage(ctx context.Context, actor *models.Identity, req CreateImageRequest) (*models.Image, error) {
	if actor == nil {
		return nil, fmt.Errorf("%w: authentication required", models.ErrUnauthorized)
	}
	if strings.TrimSpace(req.URL) == "" {
		return nil, fmt.Errorf("%w: url is required", models.ErrValidation)
	}

	board, err := a.boards.GetBoard(ctx, req.BoardID)
	if err != nil {
		return nil, err
	}
	if err := access.Check(actor, board, access.OpEditMetadata); err != nil {
		return nil, err
	}

	pos := models.DefaultPosition()
	if req.Position != nil {
		if err := req.Position.Validate(); err != nil {
			return nil, err
		}
		req.Position.Apply(&pos)
	}

	image, err := a.repo.CreateImage(ctx, &models.Image{
		ID:            uuid.New(),
		BoardID:       req.BoardID,
		UserID:        actor.UserID,
		URL:           req.URL,
		Thumbnail:     req.Thumbnail,
		Title:         req.Title,
		Description:   req.Description,
		Position:      pos,
		Tags:          req.Tags,
		IsAIGenerated: req.IsAIGenerated,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	a.emitRoom(realtime.EventImageAdd, realtime.ImageAddPayload{Image: image}, board.ID)
	if board.IsPublic {
		a.emitFeed("image_added", actor, board)
	}
	return image, nil
}

// GetImage retrieves an image the actor may view, resolved through the
// owning board.
func (a *App) GetImage(ctx context.Context, actor *models.Identity, id uuid.UUID) (*models.Image, error) {
	image, err := a.repo.GetImage(ctx, id)
	if err != nil {
		return nil, err
	}
	board, err := a.boards.GetBoard(ctx, image.BoardID)
	if err != nil {
		return nil, err
	}
	if err := access.Check(actor, board, access.OpView); err != nil {
		return nil, err
	}
	return image, nil
}

// ListImagesByBoard retrieves a board's images in paint order. Authorization
// is the caller's responsibility; the boards service checks OpView before
// asking for images.
func (a *App) ListImagesByBoard(ctx context.Context, boardID uuid.UUID) ([]*models.Image, error) {
	return a.repo.ListImagesByBoard(ctx, boardID)
}

// UpdateImageRequest carries a partial metadata update. Nil fields are left
// unchanged.
type UpdateImageRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
}

// UpdateImage applies a metadata update.
func (a *App) UpdateImage(ctx context.Context, actor *models.Identity, id uuid.UUID, req UpdateImageRequest) (*models.Image, error) {
	image, err := a.repo.GetImage(ctx, id)
	if err != nil {
		return nil, err
	}
	board, err := a.boards.GetBoard(ctx, image.BoardID)
	if err != nil {
		return nil, err
	}
	if err := access.Check(actor, board, access.OpEditMetadata); err != nil {
		return nil, err
	}

	if req.Title != nil {
		image.Title = *req.Title
	}
	if req.Description != nil {
		image.Description = *req.Description
	}
	if req.Tags != nil {
		image.Tags = *req.Tags
	}
	return a.repo.UpdateImageMetadata(ctx, image)
}

// DeleteImage removes an image, drops its cached position state and
// announces the removal to the board room.
func (a *App) DeleteImage(ctx context.Context, actor *models.Identity, id uuid.UUID) error {
	image, err := a.repo.GetImage(ctx, id)
	if err != nil {
		return err
	}
	board, err := a.boards.GetBoard(ctx, image.BoardID)
	if err != nil {
		return err
	}
	if err := access.Check(actor, board, access.OpEditMetadata); err != nil {
		return err
	}

	if err := a.repo.DeleteImage(ctx, id); err != nil {
		return err
	}
	a.invalidator.Invalidate(id)

	a.emitRoom(realtime.EventImageDelete, realtime.ImageDeletePayload{
		ImageID: id,
		BoardID: board.ID,
	}, board.ID)
	return nil
}

func (a *App) emitRoom(eventType realtime.EventType, payload any, boardID uuid.UUID) {
	event, err := realtime.NewEvent(eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("encode image event")
		return
	}
	a.broadcaster.BroadcastToRoom(realtime.BoardRoom(boardID), event, "")
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
