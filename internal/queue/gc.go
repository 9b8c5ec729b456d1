package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// GarbageCollector runs periodic DLQ purges, removing messages older than retention.
type GarbageCollector struct {
	dlqPurger DLQPurger
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
}

// NewGarbageCollector creates a new garbage collector over purger
func NewGarbageCollector(purger DLQPurger, interval, retention time.Duration, logger *zap.Logger) *GarbageCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GarbageCollector{
		dlqPurger: purger,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Start runs the GC loop until ctx is cancelled.
func (gc *GarbageCollector) Start(ctx context.Context) error {
	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := gc.collect(ctx); err != nil {
				gc.logger.Error("dlq_gc_failed", zap.Error(err))
			}
		}
	}
}

// collect purges DLQ messages older than retention.
func (gc *GarbageCollector) collect(ctx context.Context) error {
	if gc.dlqPurger == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	n, err := gc.dlqPurger.PurgeOlderThan(ctx, gc.retention)
	if err != nil {
		return fmt.Errorf("DLQ purge: %w", err)
	}
	if n > 0 {
		gc.logger.Info("dlq_gc_purged",
			zap.Int("count", n),
			zap.Duration("retention", gc.retention),
		)
	}
	return nil
}
