package boards

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/driftlab/boardroom/internal/boards/db"
	"github.com/driftlab/boardroom/internal/models"
	"github.com/driftlab/boardroom/internal/sqlutil"
)

// Querier defines what the repository needs from the database layer.
type Querier interface {
	WithTx(tx *sql.Tx) *db.Queries
	CreateBoard(ctx context.Context, arg db.CreateBoardParams) (db.Board, error)
	GetBoard(ctx context.Context, id uuid.UUID) (db.Board, error)
	ListBoardsByUser(ctx context.Context, userID uuid.UUID) ([]db.Board, error)
	ListPublicBoards(ctx context.Context, limit, offset int32) ([]db.Board, error)
	UpdateBoard(ctx context.Context, arg db.UpdateBoardParams) (db.Board, error)
	DeleteBoard(ctx context.Context, id uuid.UUID) error
	ListCollaborators(ctx context.Context, boardID uuid.UUID) ([]db.BoardCollaborator, error)
	AddCollaborator(ctx context.Context, arg db.AddCollaboratorParams) error
	RemoveCollaborator(ctx context.Context, boardID, userID uuid.UUID) error
}

// Repository implements board data access.
type Repository struct {
	queries  Querier
	database *sql.DB
}

// NewRepository creates a boards repository. The raw handle is used for the
// multi-statement delete transaction.
func NewRepository(querier Querier, database *sql.DB) *Repository {
	return &Repository{queries: querier, database: database}
}

// CreateBoard inserts a new board row.
func (r *Repository) CreateBoard(ctx context.Context, board *models.Board) (*models.Board, error) {
	tags, err := tagsToJSON(board.Tags)
	if err != nil {
		return nil, fmt.Errorf("create board: %w", err)
	}
	row, err := r.queries.CreateBoard(ctx, db.CreateBoardParams{
		ID:          board.ID,
		UserID:      board.UserID,
		Title:       board.Title,
		Description: board.Description,
		IsPublic:    board.IsPublic,
		Background:  board.Background,
		Tags:        tags,
		FolderID:    folderToNull(board.FolderID),
	})
	if err != nil {
		return nil, fmt.Errorf("create board: %w", err)
	}
	return dbBoardToModel(row, nil)
}

// GetBoard retrieves a board with its collaborator list.
func (r *Repository) GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	row, err := r.queries.GetBoard(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "get board")
	}
	collabs, err := r.queries.ListCollaborators(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get board collaborators: %w", err)
	}
	return dbBoardToModel(row, collabs)
}

// ListBoardsByUser retrieves all boards owned by userID, most recently
// updated first.
func (r *Repository) ListBoardsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Board, error) {
	rows, err := r.queries.ListBoardsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list boards by user: %w", err)
	}
	return dbBoardsToModels(rows)
}

// ListPublicBoards retrieves a page of publicly visible boards.
func (r *Repository) ListPublicBoards(ctx context.Context, limit, offset int32) ([]*models.Board, error) {
	rows, err := r.queries.ListPublicBoards(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list public boards: %w", err)
	}
	return dbBoardsToModels(rows)
}

// UpdateBoard persists mutable board fields.
func (r *Repository) UpdateBoard(ctx context.Context, board *models.Board) (*models.Board, error) {
	tags, err := tagsToJSON(board.Tags)
	if err != nil {
		return nil, fmt.Errorf("update board: %w", err)
	}
	row, err := r.queries.UpdateBoard(ctx, db.UpdateBoardParams{
		ID:          board.ID,
		Title:       board.Title,
		Description: board.Description,
		IsPublic:    board.IsPublic,
		Background:  board.Background,
		Tags:        tags,
		FolderID:    folderToNull(board.FolderID),
	})
	if err != nil {
		return nil, mapNotFound(err, "update board")
	}
	return dbBoardToModel(row, nil)
}

// DeleteBoard removes a board together with its collaborator and image rows
// in one transaction.
func (r *Repository) DeleteBoard(ctx context.Context, id uuid.UUID) error {
	err := sqlutil.Run(ctx, r.database,
		func(tx *sql.Tx) *db.Queries { return r.queries.WithTx(tx) },
		func(q *db.Queries) error {
			if err := q.DeleteBoardCollaborators(ctx, id); err != nil {
				return err
			}
			if err := q.DeleteBoardImages(ctx, id); err != nil {
				return err
			}
			return q.DeleteBoard(ctx, id)
		})
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	return nil
}

// AddCollaborator grants or updates a role on a board.
func (r *Repository) AddCollaborator(ctx context.Context, boardID, userID uuid.UUID, role models.CollaboratorRole) error {
	err := r.queries.AddCollaborator(ctx, db.AddCollaboratorParams{
		BoardID: boardID,
		UserID:  userID,
		Role:    string(role),
	})
	if err != nil {
		return fmt.Errorf("add collaborator: %w", err)
	}
	return nil
}

// RemoveCollaborator revokes a user's access to a board.
func (r *Repository) RemoveCollaborator(ctx context.Context, boardID, userID uuid.UUID) error {
	if err := r.queries.RemoveCollaborator(ctx, boardID, userID); err != nil {
		return fmt.Errorf("remove collaborator: %w", err)
	}
	return nil
}

func dbBoardToModel(b db.Board, collabs []db.BoardCollaborator) (*models.Board, error) {
	board := &models.Board{
		ID:          b.ID,
		UserID:      b.UserID,
		Title:       b.Title,
		Description: b.Description,
		IsPublic:    b.IsPublic,
		Background:  b.Background,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
	if b.Tags.Valid {
		if err := json.Unmarshal(b.Tags.RawMessage, &board.Tags); err != nil {
			return nil, fmt.Errorf("decode board tags: %w", err)
		}
	}
	if b.FolderID.Valid {
		id := b.FolderID.UUID
		board.FolderID = &id
	}
	for _, c := range collabs {
		board.Collaborators = append(board.Collaborators, models.Collaborator{
			UserID:  c.UserID,
			Role:    models.CollaboratorRole(c.Role),
			AddedAt: c.AddedAt,
		})
	}
	return board, nil
}

func dbBoardsToModels(rows []db.Board) ([]*models.Board, error) {
	out := make([]*models.Board, 0, len(rows))
	for _, row := range rows {
		board, err := dbBoardToModel(row, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, board)
	}
	return out, nil
}

func tagsToJSON(tags []string) (pqtype.NullRawMessage, error) {
	if tags == nil {
		return pqtype.NullRawMessage{}, nil
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("encode tags: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}

func folderToNull(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func mapNotFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
