package queue

import (
	"context"
	"time"
)

// MessageInterface is a received job awaiting acknowledgement. Workers depend
// on it rather than on *Message so they can be tested without a broker.
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetJob() *Job
}

// JobQueue is the interface for job queues
type JobQueue interface {
	// Enqueue publishes a job. A future NotBefore delays delivery when the
	// broker supports it.
	Enqueue(ctx context.Context, job *Job) error

	// Consume delivers messages until ctx is cancelled. prefetchCount bounds
	// the unacknowledged messages held by this consumer. Both channels are
	// closed when delivery stops.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	// Close closes the queue connection
	Close() error

	// HealthCheck verifies the queue connection is healthy
	HealthCheck(ctx context.Context) error
}

// DLQPurger drops dead-lettered messages older than a retention period
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}
