package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/benvon/eisenhower-todo/internal/models"
)

// memRepo is a minimal in-memory tasks.Repository
type memRepo struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]models.Task
	users  []models.UserTaskCount
	err    error
}

func newMemRepo() *memRepo {
	return &memRepo{nextID: 1, tasks: make(map[int64]models.Task)}
}

func (m *memRepo) Create(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	t.ID = m.nextID
	m.nextID++
	m.tasks[t.ID] = *t
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id int64) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %d not found: %w", id, sql.ErrNoRows)
	}
	return &t, nil
}

func (m *memRepo) Update(_ context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return fmt.Errorf("task %d not found: %w", t.ID, sql.ErrNoRows)
	}
	m.tasks[t.ID] = *t
	return nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return fmt.Errorf("task %d not found: %w", id, sql.ErrNoRows)
	}
	delete(m.tasks, id)
	return nil
}

func (m *memRepo) List(_ context.Context, f models.TaskFilter) ([]*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.Task
	for _, t := range m.tasks {
		if f.UserID != nil && t.UserID != *f.UserID {
			continue
		}
		if f.Completed != nil && t.Completed != *f.Completed {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(f.Query)) {
			continue
		}
		if f.HasDeadline && t.DeadlineAt == nil {
			continue
		}
		if f.DeadlineAfter != nil && (t.DeadlineAt == nil || t.DeadlineAt.Before(*f.DeadlineAfter)) {
			continue
		}
		if f.DeadlineBefore != nil && (t.DeadlineAt == nil || !t.DeadlineAt.Before(*f.DeadlineBefore)) {
			continue
		}
		cp := t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memRepo) CountByUser(context.Context) ([]models.UserTaskCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users, m.err
}
