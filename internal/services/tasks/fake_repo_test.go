package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/benvon/eisenhower-todo/internal/models"
)

// fakeRepo is an in-memory Repository. Stored tasks are copied on the way in
// and out so the service cannot mutate storage behind the repository's back.
type fakeRepo struct {
	mu      sync.Mutex
	nextID  int64
	tasks   map[int64]models.Task
	users   []models.UserTaskCount
	failErr error
	updates int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{nextID: 1, tasks: make(map[int64]models.Task)}
}

func (f *fakeRepo) Create(_ context.Context, task *models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	task.ID = f.nextID
	f.nextID++
	f.tasks[task.ID] = *task
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	t, ok := f.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task not found: %w", sql.ErrNoRows)
	}
	return &t, nil
}

func (f *fakeRepo) Update(_ context.Context, task *models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	if _, ok := f.tasks[task.ID]; !ok {
		return fmt.Errorf("task not found: %w", sql.ErrNoRows)
	}
	f.tasks[task.ID] = *task
	f.updates++
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	if _, ok := f.tasks[id]; !ok {
		return fmt.Errorf("task not found: %w", sql.ErrNoRows)
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeRepo) List(_ context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	var out []*models.Task
	for _, t := range f.tasks {
		if !matches(t, filter) {
			continue
		}
		out = append(out, &t)
	}
	// newest first, like the SQL repository
	slices.SortFunc(out, func(a, b *models.Task) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	return out, nil
}

func (f *fakeRepo) CountByUser(_ context.Context) ([]models.UserTaskCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	out := make([]models.UserTaskCount, 0, len(f.users))
	for _, u := range f.users {
		u.TaskCount = 0
		for _, t := range f.tasks {
			if t.UserID == u.ID {
				u.TaskCount++
			}
		}
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeRepo) seed(task models.Task) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	task.ID = f.nextID
	f.nextID++
	f.tasks[task.ID] = task
	return task.ID
}

func (f *fakeRepo) stored(id int64) (models.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	return t, ok
}

func matches(t models.Task, filter models.TaskFilter) bool {
	if filter.UserID != nil && t.UserID != *filter.UserID {
		return false
	}
	if filter.Completed != nil && t.Completed != *filter.Completed {
		return false
	}
	if filter.HasDeadline && t.DeadlineAt == nil {
		return false
	}
	if filter.DeadlineAfter != nil && (t.DeadlineAt == nil || t.DeadlineAt.Before(*filter.DeadlineAfter)) {
		return false
	}
	if filter.DeadlineBefore != nil && (t.DeadlineAt == nil || !t.DeadlineAt.Before(*filter.DeadlineBefore)) {
		return false
	}
	if filter.Query != "" {
		q := strings.ToLower(filter.Query)
		inTitle := strings.Contains(strings.ToLower(t.Title), q)
		inDesc := t.Description != nil && strings.Contains(strings.ToLower(*t.Description), q)
		if !inTitle && !inDesc {
			return false
		}
	}
	return true
}

var _ Repository = (*fakeRepo)(nil)

func principal(role models.Role) models.Principal {
	return models.Principal{ID: uuid.New(), Role: role}
}
