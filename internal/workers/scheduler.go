package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/eisenhower-todo/internal/queue"
)

// OwnerLister lists users whose tasks can change quadrant over time
type OwnerLister interface {
	ListOwnersWithPendingDeadlines(ctx context.Context) ([]uuid.UUID, error)
}

// Scheduler enqueues a reclassification job per owner of pending deadlined tasks
type Scheduler struct {
	jobQueue queue.JobQueue
	owners   OwnerLister
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler creates a scheduler that runs every interval
func NewScheduler(jobQueue queue.JobQueue, owners OwnerLister, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		jobQueue: jobQueue,
		owners:   owners,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start schedules once immediately and then on every tick until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) error {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.ScheduleReclassification(ctx); err != nil {
		s.logger.Error("reclassify_schedule_failed", zap.Error(err))
	}
}

// ScheduleReclassification enqueues one job per eligible owner and returns how
// many were enqueued. Jobs expire after one interval so a backlog never
// outlives the next round.
func (s *Scheduler) ScheduleReclassification(ctx context.Context) (int, error) {
	owners, err := s.owners.ListOwnersWithPendingDeadlines(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list task owners: %w", err)
	}

	notAfter := s.now().Add(s.interval)
	scheduled := 0
	for _, userID := range owners {
		job := queue.NewJob(queue.JobTypeReclassifyUser, userID)
		job.NotAfter = &notAfter
		if err := s.jobQueue.Enqueue(ctx, job); err != nil {
			s.logger.Warn("reclassify_enqueue_failed",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			continue
		}
		scheduled++
	}

	s.logger.Info("reclassify_jobs_scheduled",
		zap.Int("owner_count", len(owners)),
		zap.Int("scheduled", scheduled),
	)
	return scheduled, nil
}
