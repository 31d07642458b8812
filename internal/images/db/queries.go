package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type Image struct {
	ID            uuid.UUID
	BoardID       uuid.UUID
	UserID        uuid.UUID
	URL           string
	Thumbnail     string
	Title         string
	Description   string
	PosX          float64
	PosY          float64
	Width         float64
	Height        float64
	ZIndex        float64
	Rotation      float64
	Tags          pqtype.NullRawMessage
	IsAiGenerated bool
	Metadata      pqtype.NullRawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const createImage = `
INSERT INTO images (
  id, board_id, user_id, url, thumbnail, title, description,
  pos_x, pos_y, width, height, z_index, rotation,
  tags, is_ai_generated, metadata
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING id, board_id, user_id, url, thumbnail, title, description,
  pos_x, pos_y, width, height, z_index, rotation,
  tags, is_ai_generated, metadata, created_at, updated_at
`

type CreateImageParams struct {
	ID            uuid.UUID
	BoardID       uuid.UUID
	UserID        uuid.UUID
	URL           string
	Thumbnail     string
	Title         string
	Description   string
	PosX          float64
	PosY          float64
	Width         float64
	Height        float64
	ZIndex        float64
	Rotation      float64
	Tags          pqtype.NullRawMessage
	IsAiGenerated bool
	Metadata      pqtype.NullRawMessage
}

func (q *Queries) CreateImage(ctx context.Context, arg CreateImageParams) (Image, error) {
	row := q.db.QueryRowContext(ctx, createImage,
		arg.ID, arg.BoardID, arg.UserID, arg.URL, arg.Thumbnail, arg.Title, arg.Description,
		arg.PosX, arg.PosY, arg.Width, arg.Height, arg.ZIndex, arg.Rotation,
		arg.Tags, arg.IsAiGenerated, arg.Metadata)
	var i Image
	err := row.Scan(&i.ID, &i.BoardID, &i.UserID, &i.URL, &i.Thumbnail, &i.Title, &i.Description,
		&i.PosX, &i.PosY, &i.Width, &i.Height, &i.ZIndex, &i.Rotation,
		&i.Tags, &i.IsAiGenerated, &i.Metadata, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const getImage = `
SELECT id, board_id, user_id, url, thumbnail, title, description,
  pos_x, pos_y, width, height, z_index, rotation,
  tags, is_ai_generated, metadata, created_at, updated_at
FROM images WHERE id = $1
`

func (q *Queries) GetImage(ctx context.Context, id uuid.UUID) (Image, error) {
	row := q.db.QueryRowContext(ctx, getImage, id)
	var i Image
	err := row.Scan(&i.ID, &i.BoardID, &i.UserID, &i.URL, &i.Thumbnail, &i.Title, &i.Description,
		&i.PosX, &i.PosY, &i.Width, &i.Height, &i.ZIndex, &i.Rotation,
		&i.Tags, &i.IsAiGenerated, &i.Metadata, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const listImagesByBoard = `
SELECT id, board_id, user_id, url, thumbnail, title, description,
  pos_x, pos_y, width, height, z_index, rotation,
  tags, is_ai_generated, metadata, created_at, updated_at
FROM images WHERE board_id = $1
ORDER BY z_index, created_at
`

func (q *Queries) ListImagesByBoard(ctx context.Context, boardID uuid.UUID) ([]Image, error) {
	rows, err := q.db.QueryContext(ctx, listImagesByBoard, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Image
	for rows.Next() {
		var i Image
		if err := rows.Scan(&i.ID, &i.BoardID, &i.UserID, &i.URL, &i.Thumbnail, &i.Title, &i.Description,
			&i.PosX, &i.PosY, &i.Width, &i.Height, &i.ZIndex, &i.Rotation,
			&i.Tags, &i.IsAiGenerated, &i.Metadata, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

const updateImagePosition = `
UPDATE images
SET pos_x = $2, pos_y = $3, width = $4, height = $5, z_index = $6, rotation = $7, updated_at = NOW()
WHERE id = $1
`

type UpdateImagePositionParams struct {
	ID       uuid.UUID
	PosX     float64
	PosY     float64
	Width    float64
	Height   float64
	ZIndex   float64
	Rotation float64
}

func (q *Queries) UpdateImagePosition(ctx context.Context, arg UpdateImagePositionParams) error {
	_, err := q.db.ExecContext(ctx, updateImagePosition,
		arg.ID, arg.PosX, arg.PosY, arg.Width, arg.Height, arg.ZIndex, arg.Rotation)
	return err
}

const updateImageMetadata = `
UPDATE images
SET title = $2, description = $3, tags = $4, updated_at = NOW()
WHERE id = $1
RETURNING id, board_id, user_id, url, thumbnail, title, description,
  pos_x, pos_y, width, height, z_index, rotation,
  tags, is_ai_generated, metadata, created_at, updated_at
`

type UpdateImageMetadataParams struct {
	ID          uuid.UUID
	Title       string
	Description string
	Tags        pqtype.NullRawMessage
}

func (q *Queries) UpdateImageMetadata(ctx context.Context, arg UpdateImageMetadataParams) (Image, error) {
	row := q.db.QueryRowContext(ctx, updateImageMetadata,
		arg.ID, arg.Title, arg.Description, arg.Tags)
	var i Image
	err := row.Scan(&i.ID, &i.BoardID, &i.UserID, &i.URL, &i.Thumbnail, &i.Title, &i.Description,
		&i.PosX, &i.PosY, &i.Width, &i.Height, &i.ZIndex, &i.Rotation,
		&i.Tags, &i.IsAiGenerated, &i.Metadata, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const deleteImage = `DELETE FROM images WHERE id = $1`

func (q *Queries) DeleteImage(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteImage, id)
	return err
}
