// Package jobs runs background image-combine work and publishes its
// progress onto the board event stream.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/driftlab/boardroom/internal/access"
	"github.com/driftlab/boardroom/internal/images"
	"github.com/driftlab/boardroom/internal/models"
	"github.com/driftlab/boardroom/internal/realtime"
)

// ImageCreator adds the combined result onto the board once a job finishes.
type ImageCreator interface {
	CreateImage(ctx context.Context, actor *models.Identity, req images.CreateImageRequest) (*models.Image, error)
}

// ImageGetter loads source images for validation.
type ImageGetter interface {
	GetImage(ctx context.Context, actor *models.Identity, id uuid.UUID) (*models.Image, error)
}

// BoardGetter loads boards for authorization context.
type BoardGetter interface {
	GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error)
}

// Job statuses as reported on image:processing events.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// CombineRequest asks for several images to be merged into a new one.
type CombineRequest struct {
	BoardID  uuid.UUID   `json:"boardId"`
	ImageIDs []uuid.UUID `json:"imageIds"`
	Prompt   string      `json:"prompt"`
}

// CombineJob is one unit of queued work.
type CombineJob struct {
	ID       string          `json:"id"`
	BoardID  uuid.UUID       `json:"boardId"`
	ImageIDs []uuid.UUID     `json:"imageIds"`
	Prompt   string          `json:"prompt"`
	Actor    models.Identity `json:"-"`
	Status   string          `json:"status"`
}

// RunnerConfig sizes the worker pool.
type RunnerConfig struct {
	Workers    int
	QueueDepth int
	StageDelay time.Duration
}

// DefaultRunnerConfig returns the runner defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:    2,
		QueueDepth: 64,
		StageDelay: 500 * time.Millisecond,
	}
}

// Runner accepts combine jobs and works them on a fixed pool. Progress goes
// onto the event stream so every gateway instance can relay it to the job
// owner's private room.
type Runner struct {
	publisher Publisher
	creator   ImageCreator
	getter    ImageGetter
	boards    BoardGetter
	config    RunnerConfig
	clock     clockwork.Clock

	queue chan CombineJob
}

// NewRunner creates a combine-job runner. A nil clock means the real one.
func NewRunner(publisher Publisher, creator ImageCreator, getter ImageGetter, boards BoardGetter, config RunnerConfig, clock clockwork.Clock) *Runner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Runner{
		publisher: publisher,
		creator:   creator,
		getter:    getter,
		boards:    boards,
		config:    config,
		clock:     clock,
		queue:     make(chan CombineJob, config.QueueDepth),
	}
}

// Start launches the worker pool and blocks until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	log.Info().Int("workers", r.config.Workers).Msg("starting combine job runner")
	for i := 0; i < r.config.Workers; i++ {
		go r.worker(ctx)
	}
	<-ctx.Done()
	log.Info().Msg("combine job runner shutting down")
}

// Enqueue validates and queues a combine job, reporting it as queued to the
// owner before returning.
func (r *Runner) Enqueue(ctx context.Context, actor *models.Identity, req CombineRequest) (*CombineJob, error) {
	if actor == nil {
		return nil, fmt.Errorf("%w: authentication required", models.ErrUnauthorized)
	}
	if len(req.ImageIDs) < 2 {
		return nil, fmt.Errorf("%w: at least two source images are required", models.ErrValidation)
	}

	board, err := r.boards.GetBoard(ctx, req.BoardID)
	if err != nil {
		return nil, err
	}
	if err := access.Check(actor, board, access.OpEditMetadata); err != nil {
		return nil, err
	}
	for _, id := range req.ImageIDs {
		img, err := r.getter.GetImage(ctx, actor, id)
		if err != nil {
			return nil, err
		}
		if img.BoardID != req.BoardID {
			return nil, fmt.Errorf("%w: image %s is not on board %s", models.ErrValidation, id, req.BoardID)
		}
	}

	job := CombineJob{
		ID:       uuid.New().String(),
		BoardID:  req.BoardID,
		ImageIDs: req.ImageIDs,
		Prompt:   req.Prompt,
		Actor:    *actor,
		Status:   StatusQueued,
	}

	select {
	case r.queue <- job:
	default:
		return nil, fmt.Errorf("%w: job queue is full", models.ErrValidation)
	}

	r.reportProgress(ctx, job, StatusQueued, 0, nil)
	return &job, nil
}

func (r *Runner) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-r.queue:
			r.run(ctx, job)
		}
	}
}

func (r *Runner) run(ctx context.Context, job CombineJob) {
	logger := log.With().Str("job_id", job.ID).Str("board_id", job.BoardID.String()).Logger()
	logger.Info().Int("sources", len(job.ImageIDs)).Msg("combine job started")

	for _, progress := range []int{25, 50, 75} {
		r.reportProgress(ctx, job, StatusProcessing, progress, nil)
		select {
		case <-ctx.Done():
			return
		case <-r.clock.After(r.config.StageDelay):
		}
	}

	metadata, err := json.Marshal(map[string]any{
		"sourceImageIds": job.ImageIDs,
		"prompt":         job.Prompt,
		"jobId":          job.ID,
	})
	if err != nil {
		r.fail(ctx, job, logger, fmt.Errorf("encode metadata: %w", err))
		return
	}

	image, err := r.creator.CreateImage(ctx, &job.Actor, images.CreateImageRequest{
		BoardID:       job.BoardID,
		URL:           combinedImageURL(job),
		Title:         "Combined image",
		Description:   job.Prompt,
		IsAIGenerated: true,
		Metadata:      metadata,
	})
	if err != nil {
		r.fail(ctx, job, logger, err)
		return
	}

	r.reportProgress(ctx, job, StatusCompleted, 100, nil)
	logger.Info().Str("image_id", image.ID.String()).Msg("combine job finished")
}

func (r *Runner) fail(ctx context.Context, job CombineJob, logger zerolog.Logger, err error) {
	logger.Error().Err(err).Msg("combine job failed")
	msg := "image combination failed"
	r.reportProgress(ctx, job, StatusError, 0, &msg)
}

func (r *Runner) reportProgress(ctx context.Context, job CombineJob, status string, progress int, errMsg *string) {
	payload, err := json.Marshal(realtime.ImageProcessingPayload{
		JobID:    job.ID,
		Status:   status,
		Progress: progress,
		Error:    errMsg,
	})
	if err != nil {
		log.Error().Err(err).Msg("encode image:processing payload")
		return
	}

	envelope := realtime.StreamEnvelope{
		EventType: realtime.EventImageProcessing,
		BoardID:   job.BoardID,
		UserID:    job.Actor.UserID,
		Payload:   payload,
	}
	if err := r.publisher.Publish(ctx, envelope); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("publish job progress")
	}
}

// combinedImageURL is where the result would be stored. Rendering is out of
// scope for this service; the URL scheme is what the storage worker uses.
func combinedImageURL(job CombineJob) string {
	return "/generated/" + job.ID + ".png"
}
