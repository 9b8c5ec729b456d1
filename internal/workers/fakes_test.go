package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/eisenhower-todo/internal/models"
	"github.com/benvon/eisenhower-todo/internal/queue"
)

// fakeQueue records enqueued jobs
type fakeQueue struct {
	mu         sync.Mutex
	jobs       []*queue.Job
	enqueueErr error
	msgs       chan *queue.Message
	errs       chan error
}

func (q *fakeQueue) Enqueue(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Consume(context.Context, int) (<-chan *queue.Message, <-chan error, error) {
	if q.msgs == nil {
		return nil, nil, errors.New("consume not configured")
	}
	return q.msgs, q.errs, nil
}

func (q *fakeQueue) Close() error                      { return nil }
func (q *fakeQueue) HealthCheck(context.Context) error { return nil }

func (q *fakeQueue) enqueued() []*queue.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*queue.Job(nil), q.jobs...)
}

var _ queue.JobQueue = (*fakeQueue)(nil)

// fakeTaskRepo serves tasks from memory
type fakeTaskRepo struct {
	tasks     []*models.Task
	owners    []uuid.UUID
	listErr   error
	updateErr error
	filters   []models.TaskFilter
	updated   map[int64]models.Quadrant
}

func (r *fakeTaskRepo) List(_ context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	r.filters = append(r.filters, filter)
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*models.Task
	for _, t := range r.tasks {
		if filter.UserID != nil && t.UserID != *filter.UserID {
			continue
		}
		if filter.Completed != nil && t.Completed != *filter.Completed {
			continue
		}
		if filter.HasDeadline && t.DeadlineAt == nil {
			continue
		}
		copied := *t
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeTaskRepo) UpdateQuadrant(_ context.Context, id int64, quadrant models.Quadrant) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if r.updated == nil {
		r.updated = map[int64]models.Quadrant{}
	}
	r.updated[id] = quadrant
	return nil
}

func (r *fakeTaskRepo) ListOwnersWithPendingDeadlines(context.Context) ([]uuid.UUID, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.owners, nil
}

// fakeMessage records how it was settled
type fakeMessage struct {
	job     *queue.Job
	acked   bool
	nacked  bool
	requeue bool
}

func (m *fakeMessage) Ack() error { m.acked = true; return nil }
func (m *fakeMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeue = requeue
	return nil
}
func (m *fakeMessage) GetJob() *queue.Job { return m.job }

var _ queue.MessageInterface = (*fakeMessage)(nil)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }
