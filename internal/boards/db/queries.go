package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type Board struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Title       string
	Description string
	IsPublic    bool
	Background  string
	Tags        pqtype.NullRawMessage
	FolderID    uuid.NullUUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type BoardCollaborator struct {
	BoardID uuid.UUID
	UserID  uuid.UUID
	Role    string
	AddedAt time.Time
}

const createBoard = `
INSERT INTO boards (id, user_id, title, description, is_public, background, tags, folder_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, user_id, title, description, is_public, background, tags, folder_id, created_at, updated_at
`

type CreateBoardParams struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Title       string
	Description string
	IsPublic    bool
	Background  string
	Tags        pqtype.NullRawMessage
	FolderID    uuid.NullUUID
}

func (q *Queries) CreateBoard(ctx context.Context, arg CreateBoardParams) (Board, error) {
	row := q.db.QueryRowContext(ctx, createBoard,
		arg.ID, arg.UserID, arg.Title, arg.Description, arg.IsPublic, arg.Background, arg.Tags, arg.FolderID)
	var b Board
	err := row.Scan(&b.ID, &b.UserID, &b.Title, &b.Description, &b.IsPublic,
		&b.Background, &b.Tags, &b.FolderID, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

const getBoard = `
SELECT id, user_id, title, description, is_public, background, tags, folder_id, created_at, updated_at
FROM boards WHERE id = $1
`

func (q *Queries) GetBoard(ctx context.Context, id uuid.UUID) (Board, error) {
	row := q.db.QueryRowContext(ctx, getBoard, id)
	var b Board
	err := row.Scan(&b.ID, &b.UserID, &b.Title, &b.Description, &b.IsPublic,
		&b.Background, &b.Tags, &b.FolderID, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

const listBoardsByUser = `
SELECT id, user_id, title, description, is_public, background, tags, folder_id, created_at, updated_at
FROM boards WHERE user_id = $1
ORDER BY updated_at DESC
`

func (q *Queries) ListBoardsByUser(ctx context.Context, userID uuid.UUID) ([]Board, error) {
	rows, err := q.db.QueryContext(ctx, listBoardsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Board
	for rows.Next() {
		var b Board
		if err := rows.Scan(&b.ID, &b.UserID, &b.Title, &b.Description, &b.IsPublic,
			&b.Background, &b.Tags, &b.FolderID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const listPublicBoards = `
SELECT id, user_id, title, description, is_public, background, tags, folder_id, created_at, updated_at
FROM boards WHERE is_public = TRUE
ORDER BY updated_at DESC
LIMIT $1 OFFSET $2
`

func (q *Queries) ListPublicBoards(ctx context.Context, limit, offset int32) ([]Board, error) {
	rows, err := q.db.QueryContext(ctx, listPublicBoards, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Board
	for rows.Next() {
		var b Board
		if err := rows.Scan(&b.ID, &b.UserID, &b.Title, &b.Description, &b.IsPublic,
			&b.Background, &b.Tags, &b.FolderID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const updateBoard = `
UPDATE boards
SET title = $2, description = $3, is_public = $4, background = $5, tags = $6, folder_id = $7, updated_at = NOW()
WHERE id = $1
RETURNING id, user_id, title, description, is_public, background, tags, folder_id, created_at, updated_at
`

type UpdateBoardParams struct {
	ID          uuid.UUID
	Title       string
	Description string
	IsPublic    bool
	Background  string
	Tags        pqtype.NullRawMessage
	FolderID    uuid.NullUUID
}

func (q *Queries) UpdateBoard(ctx context.Context, arg UpdateBoardParams) (Board, error) {
	row := q.db.QueryRowContext(ctx, updateBoard,
		arg.ID, arg.Title, arg.Description, arg.IsPublic, arg.Background, arg.Tags, arg.FolderID)
	var b Board
	err := row.Scan(&b.ID, &b.UserID, &b.Title, &b.Description, &b.IsPublic,
		&b.Background, &b.Tags, &b.FolderID, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

const deleteBoard = `DELETE FROM boards WHERE id = $1`

func (q *Queries) DeleteBoard(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteBoard, id)
	return err
}

const deleteBoardCollaborators = `DELETE FROM board_collaborators WHERE board_id = $1`

func (q *Queries) DeleteBoardCollaborators(ctx context.Context, boardID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteBoardCollaborators, boardID)
	return err
}

const deleteBoardImages = `DELETE FROM images WHERE board_id = $1`

func (q *Queries) DeleteBoardImages(ctx context.Context, boardID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteBoardImages, boardID)
	return err
}

const listCollaborators = `
SELECT board_id, user_id, role, added_at
FROM board_collaborators WHERE board_id = $1
ORDER BY added_at
`

func (q *Queries) ListCollaborators(ctx context.Context, boardID uuid.UUID) ([]BoardCollaborator, error) {
	rows, err := q.db.QueryContext(ctx, listCollaborators, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BoardCollaborator
	for rows.Next() {
		var c BoardCollaborator
		if err := rows.Scan(&c.BoardID, &c.UserID, &c.Role, &c.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const addCollaborator = `
INSERT INTO board_collaborators (board_id, user_id, role)
VALUES ($1, $2, $3)
ON CONFLICT (board_id, user_id) DO UPDATE SET role = EXCLUDED.role
`

type AddCollaboratorParams struct {
	BoardID uuid.UUID
	UserID  uuid.UUID
	Role    string
}

func (q *Queries) AddCollaborator(ctx context.Context, arg AddCollaboratorParams) error {
	_, err := q.db.ExecContext(ctx, addCollaborator, arg.BoardID, arg.UserID, arg.Role)
	return err
}

const removeCollaborator = `
DELETE FROM board_collaborators WHERE board_id = $1 AND user_id = $2
`

func (q *Queries) RemoveCollaborator(ctx context.Context, boardID, userID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, removeCollaborator, boardID, userID)
	return err
}
