// Package reconcile holds the canonical position state for every image being
// moved and is the single writer path for position fields.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/driftlab/boardroom/internal/access"
	"github.com/driftlab/boardroom/internal/models"
	"github.com/driftlab/boardroom/internal/realtime"
)

// ImageStore is the persistence collaborator for image records.
type ImageStore interface {
	GetImage(ctx context.Context, id uuid.UUID) (*models.Image, error)
	UpdateImagePosition(ctx context.Context, id uuid.UUID, pos models.Position) error
}

// BoardStore fetches boards for authorization context.
type BoardStore interface {
	GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error)
}

// Broadcaster is the slice of the router the reconciler needs.
type Broadcaster interface {
	BroadcastToRoom(room string, event *realtime.Event, excludeConnID string)
}

type imageState struct {
	boardID  uuid.UUID
	position models.Position
}

// Reconciler merges partial position updates onto server-held canonical
// state. Conflicting concurrent writes to the same field resolve last write
// wins with no conflict error; writes to different fields compose. That is
// the accepted consistency policy, not an oversight.
type Reconciler struct {
	images      ImageStore
	boards      BoardStore
	broadcaster Broadcaster

	mu    sync.Mutex
	state map[uuid.UUID]*imageState

	persistTimeout time.Duration
}

// NewReconciler creates a reconciler over the given collaborators.
func NewReconciler(images ImageStore, boards BoardStore, broadcaster Broadcaster) *Reconciler {
	return &Reconciler{
		images:         images,
		boards:         boards,
		broadcaster:    broadcaster,
		state:          make(map[uuid.UUID]*imageState),
		persistTimeout: 10 * time.Second,
	}
}

// ApplyMove validates, authorizes and merges a partial position update, then
// persists asynchronously and broadcasts the accepted canonical state to the
// image's board room, excluding the originating connection (the originator
// already applied the change optimistically and must not re-apply its own
// echo). Both the live channel and the REST position endpoint land here.
func (r *Reconciler) ApplyMove(ctx context.Context, actor *models.Identity, connID string, imageID uuid.UUID, patch models.PositionPatch) (*models.Position, error) {
	// Reject malformed payloads before anything is merged.
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	boardID, err := r.owningBoard(ctx, imageID)
	if err != nil {
		return nil, err
	}

	board, err := r.boards.GetBoard(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("load board %s: %w", boardID, err)
	}
	if err := access.Check(actor, board, access.OpMoveImage); err != nil {
		return nil, err
	}

	// Short critical section: merge onto canonical state, copy the result.
	// The lock is released before persistence and broadcast.
	r.mu.Lock()
	state, ok := r.state[imageID]
	if !ok {
		// owningBoard primed the cache; a miss here means the image was
		// invalidated concurrently (e.g. deleted).
		r.mu.Unlock()
		return nil, fmt.Errorf("image %s: %w", imageID, models.ErrNotFound)
	}
	patch.Apply(&state.position)
	merged := state.position
	r.mu.Unlock()

	// Fire-and-forget persistence: the broadcast goes out as soon as the
	// in-memory merge succeeds. A crash between merge and persist loses at
	// most the latest move; clients re-derive from the last persisted state
	// on the next full refresh.
	go r.persist(imageID, merged)

	event, err := realtime.NewEvent(realtime.EventImageMoved, realtime.ImageMovedPayload{
		ImageID:  imageID,
		Position: merged,
		UserID:   actor.UserID,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to build image:moved event")
	} else {
		r.broadcaster.BroadcastToRoom(realtime.BoardRoom(boardID), event, connID)
	}

	return &merged, nil
}

// Invalidate drops the canonical cache entry for an image, e.g. after the
// image is deleted.
func (r *Reconciler) Invalidate(imageID uuid.UUID) {
	r.mu.Lock()
	delete(r.state, imageID)
	r.mu.Unlock()
}

// owningBoard resolves the board an image belongs to, priming the canonical
// cache from the store on first sight.
func (r *Reconciler) owningBoard(ctx context.Context, imageID uuid.UUID) (uuid.UUID, error) {
	r.mu.Lock()
	if state, ok := r.state[imageID]; ok {
		boardID := state.boardID
		r.mu.Unlock()
		return boardID, nil
	}
	r.mu.Unlock()

	img, err := r.images.GetImage(ctx, imageID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load image %s: %w", imageID, err)
	}

	r.mu.Lock()
	// Another request may have primed the entry while we were loading;
	// keep the existing canonical state in that case.
	if _, ok := r.state[imageID]; !ok {
		r.state[imageID] = &imageState{boardID: img.BoardID, position: img.Position}
	}
	boardID := r.state[imageID].boardID
	r.mu.Unlock()

	return boardID, nil
}

func (r *Reconciler) persist(imageID uuid.UUID, pos models.Position) {
	ctx, cancel := context.WithTimeout(context.Background(), r.persistTimeout)
	defer cancel()

	if err := r.images.UpdateImagePosition(ctx, imageID, pos); err != nil {
		// Internal error: logged, never blocks the broadcast already issued.
		log.Error().
			Err(err).
			Str("image_id", imageID.String()).
			Msg("failed to persist image position")
	}
}
