package images

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/driftlab/boardroom/internal/images/db"
	"github.com/driftlab/boardroom/internal/models"
)

// Querier defines what the repository needs from the database layer.
type Querier interface {
	CreateImage(ctx context.Context, arg db.CreateImageParams) (db.Image, error)
	GetImage(ctx context.Context, id uuid.UUID) (db.Image, error)
	ListImagesByBoard(ctx context.Context, boardID uuid.UUID) ([]db.Image, error)
	UpdateImagePosition(ctx context.Context, arg db.UpdateImagePositionParams) error
	UpdateImageMetadata(ctx context.Context, arg db.UpdateImageMetadataParams) (db.Image, error)
	DeleteImage(ctx context.Context, id uuid.UUID) error
}

// Repository implements image data access. It also satisfies the
// reconciler's ImageStore.
type Repository struct {
	queries Querier
}

// NewRepository creates an images repository.
func NewRepository(querier Querier) *Repository {
	return &Repository{queries: querier}
}

// CreateImage inserts a new image row.
func (r *Repository) CreateImage(ctx context.Context, image *models.Image) (*models.Image, error) {
	tags, err := rawTags(image.Tags)
	if err != nil {
		return nil, fmt.Errorf("create image: %w", err)
	}
	row, err := r.queries.CreateImage(ctx, db.CreateImageParams{
		ID:            image.ID,
		BoardID:       image.BoardID,
		UserID:        image.UserID,
		URL:           image.URL,
		Thumbnail:     image.Thumbnail,
		Title:         image.Title,
		Description:   image.Description,
		PosX:          image.Position.X,
		PosY:          image.Position.Y,
		Width:         image.Position.Width,
		Height:        image.Position.Height,
		ZIndex:        image.Position.ZIndex,
		Rotation:      image.Position.Rotation,
		Tags:          tags,
		IsAiGenerated: image.IsAIGenerated,
		Metadata:      rawMetadata(image.Metadata),
	})
	if err != nil {
		return nil, fmt.Errorf("create image: %w", err)
	}
	return dbImageToModel(row)
}

// GetImage retrieves an image by ID.
func (r *Repository) GetImage(ctx context.Context, id uuid.UUID) (*models.Image, error) {
	row, err := r.queries.GetImage(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "get image")
	}
	return dbImageToModel(row)
}

// ListImagesByBoard retrieves a board's images in paint order.
func (r *Repository) ListImagesByBoard(ctx context.Context, boardID uuid.UUID) ([]*models.Image, error) {
	rows, err := r.queries.ListImagesByBoard(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	out := make([]*models.Image, 0, len(rows))
	for _, row := range rows {
		img, err := dbImageToModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

// UpdateImagePosition writes the canonical position for an image.
func (r *Repository) UpdateImagePosition(ctx context.Context, id uuid.UUID, pos models.Position) error {
	err := r.queries.UpdateImagePosition(ctx, db.UpdateImagePositionParams{
		ID:       id,
		PosX:     pos.X,
		PosY:     pos.Y,
		Width:    pos.Width,
		Height:   pos.Height,
		ZIndex:   pos.ZIndex,
		Rotation: pos.Rotation,
	})
	if err != nil {
		return fmt.Errorf("update image position: %w", err)
	}
	return nil
}

// UpdateImageMetadata persists title, description and tags.
func (r *Repository) UpdateImageMetadata(ctx context.Context, image *models.Image) (*models.Image, error) {
	tags, err := rawTags(image.Tags)
	if err != nil {
		return nil, fmt.Errorf("update image: %w", err)
	}
	row, err := r.queries.UpdateImageMetadata(ctx, db.UpdateImageMetadataParams{
		ID:          image.ID,
		Title:       image.Title,
		Description: image.Description,
		Tags:        tags,
	})
	if err != nil {
		return nil, mapNotFound(err, "update image")
	}
	return dbImageToModel(row)
}

// DeleteImage removes an image row.
func (r *Repository) DeleteImage(ctx context.Context, id uuid.UUID) error {
	if err := r.queries.DeleteImage(ctx, id); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

func dbImageToModel(i db.Image) (*models.Image, error) {
	img := &models.Image{
		ID:          i.ID,
		BoardID:     i.BoardID,
		UserID:      i.UserID,
		URL:         i.URL,
		Thumbnail:   i.Thumbnail,
		Title:       i.Title,
		Description: i.Description,
		Position: models.Position{
			X:        i.PosX,
			Y:        i.PosY,
			Width:    i.Width,
			Height:   i.Height,
			ZIndex:   i.ZIndex,
			Rotation: i.Rotation,
		},
		IsAIGenerated: i.IsAiGenerated,
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}
	if i.Tags.Valid {
		if err := json.Unmarshal(i.Tags.RawMessage, &img.Tags); err != nil {
			return nil, fmt.Errorf("decode image tags: %w", err)
		}
	}
	if i.Metadata.Valid {
		img.Metadata = json.RawMessage(i.Metadata.RawMessage)
	}
	return img, nil
}

func rawTags(tags []string) (pqtype.NullRawMessage, error) {
	if tags == nil {
		return pqtype.NullRawMessage{}, nil
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("encode tags: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}

func rawMetadata(meta json.RawMessage) pqtype.NullRawMessage {
	if len(meta) == 0 {
		return pqtype.NullRawMessage{}
	}
	return pqtype.NullRawMessage{RawMessage: meta, Valid: true}
}

func mapNotFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
