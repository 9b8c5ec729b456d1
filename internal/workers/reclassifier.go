package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/eisenhower-todo/internal/database"
	"github.com/benvon/eisenhower-todo/internal/eisenhower"
	"github.com/benvon/eisenhower-todo/internal/models"
	"github.com/benvon/eisenhower-todo/internal/queue"
)

// ErrUnknownJobType marks a job this worker cannot handle. Such jobs are
// dead-lettered without retry.
var ErrUnknownJobType = errors.New("unknown job type")

// DefaultRetryDelay is the base backoff before a failed job is retried
const DefaultRetryDelay = 30 * time.Second

// Reclassifier refreshes stored quadrants of tasks whose urgency changed with time
type Reclassifier struct {
	repo       database.ReclassifyRepositoryInterface
	jobQueue   queue.JobQueue
	logger     *zap.Logger
	now        func() time.Time
	retryDelay time.Duration
}

// NewReclassifier creates a reclassifier. jobQueue is used to re-enqueue retries.
func NewReclassifier(repo database.ReclassifyRepositoryInterface, jobQueue queue.JobQueue, logger *zap.Logger) *Reclassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reclassifier{
		repo:       repo,
		jobQueue:   jobQueue,
		logger:     logger,
		now:        time.Now,
		retryDelay: DefaultRetryDelay,
	}
}

// ProcessJob recomputes every pending deadlined task of the job's user and
// persists the quadrants that changed. It returns the number of updated tasks.
func (r *Reclassifier) ProcessJob(ctx context.Context, job *queue.Job) (int, error) {
	if job.Type != queue.JobTypeReclassifyUser {
		return 0, fmt.Errorf("%w: %s", ErrUnknownJobType, job.Type)
	}

	userID := job.UserID
	pending := false
	tasks, err := r.repo.List(ctx, models.TaskFilter{
		UserID:      &userID,
		Completed:   &pending,
		HasDeadline: true,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	now := r.now().UTC()
	updated := 0
	for _, task := range tasks {
		stored := task.Quadrant
		eisenhower.Classify(task, now)
		if task.Quadrant == stored {
			continue
		}
		if err := r.repo.UpdateQuadrant(ctx, task.ID, task.Quadrant); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Deleted since listing.
				continue
			}
			return updated, fmt.Errorf("failed to update quadrant of task %d: %w", task.ID, err)
		}
		updated++
	}
	return updated, nil
}

// HandleMessage processes one delivery and settles it. Failures are retried
// through a delayed re-enqueue until the job's retries are exhausted, after
// which the message is dead-lettered.
func (r *Reclassifier) HandleMessage(ctx context.Context, msg queue.MessageInterface) {
	job := msg.GetJob()
	log := r.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("user_id", job.UserID.String()),
		zap.Int("retry_count", job.RetryCount),
	)

	updated, err := r.ProcessJob(ctx, job)
	if err == nil {
		log.Info("reclassify_job_done", zap.Int("updated", updated))
		r.settle(log, msg.Ack())
		return
	}

	if errors.Is(err, ErrUnknownJobType) || !job.CanRetry() {
		log.Error("reclassify_job_dead_lettered", zap.Error(err))
		r.settle(log, msg.Nack(false))
		return
	}

	delay := r.retryDelay * time.Duration(1<<job.RetryCount)
	if enqErr := r.jobQueue.Enqueue(ctx, job.Retry(r.now(), delay)); enqErr != nil {
		log.Error("reclassify_retry_enqueue_failed", zap.Error(enqErr), zap.NamedError("cause", err))
		r.settle(log, msg.Nack(true))
		return
	}
	log.Warn("reclassify_job_retrying", zap.Error(err), zap.Duration("delay", delay))
	r.settle(log, msg.Ack())
}

func (r *Reclassifier) settle(log *zap.Logger, err error) {
	if err != nil {
		log.Error("job_settle_failed", zap.Error(err))
	}
}

// Run consumes jobs until ctx is cancelled or the delivery stream ends.
func (r *Reclassifier) Run(ctx context.Context, prefetch int) error {
	msgs, errs, err := r.jobQueue.Consume(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return streamEnd(ctx, errs)
			}
			r.HandleMessage(ctx, msg)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return err
			}
		}
	}
}

// streamEnd reports why the delivery stream closed. errs may already be
// closed and set to nil, so the read never blocks.
func streamEnd(ctx context.Context, errs <-chan error) error {
	if errs != nil {
		select {
		case err, ok := <-errs:
			if ok && err != nil {
				return err
			}
		default:
		}
	}
	return ctx.Err()
}
