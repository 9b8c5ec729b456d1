package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/eisenhower-todo/internal/models"
)

const taskColumns = `id, user_id, title, description, is_important, quadrant, completed, created_at, completed_at, deadline_at`

// TaskRepository handles task database operations
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a task and fills in its generated id
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (user_id, title, description, is_important, quadrant, completed, created_at, completed_at, deadline_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.db.QueryRowxContext(ctx, query,
		task.UserID,
		task.Title,
		task.Description,
		task.IsImportant,
		task.Quadrant,
		task.Completed,
		task.CreatedAt,
		task.CompletedAt,
		task.DeadlineAt,
	).Scan(&task.ID)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetByID retrieves a task by ID
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	task := &models.Task{}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	err := r.db.GetContext(ctx, task, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d not found: %w", id, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return normalizeTask(task), nil
}

// Update writes every mutable column of task
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE tasks
		SET title = $2, description = $3, is_important = $4, quadrant = $5, completed = $6, completed_at = $7, deadline_at = $8
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.IsImportant,
		task.Quadrant,
		task.Completed,
		task.CompletedAt,
		task.DeadlineAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	return expectOneRow(result, task.ID)
}

// UpdateQuadrant stores a recomputed quadrant without touching other columns
func (r *TaskRepository) UpdateQuadrant(ctx context.Context, id int64, quadrant models.Quadrant) error {
	result, err := r.db.ExecContext(ctx, `UPDATE tasks SET quadrant = $2 WHERE id = $1`, id, quadrant)
	if err != nil {
		return fmt.Errorf("failed to update task quadrant: %w", err)
	}

	return expectOneRow(result, id)
}

// Delete deletes a task by ID
func (r *TaskRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return expectOneRow(result, id)
}

// List returns the tasks matching filter, newest first
func (r *TaskRepository) List(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	query, args := buildListQuery(filter)

	var tasks []*models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	for _, t := range tasks {
		normalizeTask(t)
	}

	return tasks, nil
}

// CountByUser lists every user with the number of tasks they own
func (r *TaskRepository) CountByUser(ctx context.Context) ([]models.UserTaskCount, error) {
	query := `
		SELECT u.id, u.email, u.name, u.role, COUNT(t.id) AS task_count
		FROM users u
		LEFT JOIN tasks t ON t.user_id = u.id
		GROUP BY u.id, u.email, u.name, u.role
		ORDER BY u.email
	`

	var counts []models.UserTaskCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("failed to count tasks by user: %w", err)
	}

	return counts, nil
}

// ListOwnersWithPendingDeadlines returns the users owning at least one pending
// task that has a deadline. Only those tasks can change quadrant over time.
func (r *TaskRepository) ListOwnersWithPendingDeadlines(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT user_id
		FROM tasks
		WHERE NOT completed AND deadline_at IS NOT NULL
		ORDER BY user_id
	`

	var owners []uuid.UUID
	if err := r.db.SelectContext(ctx, &owners, query); err != nil {
		return nil, fmt.Errorf("failed to list task owners: %w", err)
	}

	return owners, nil
}

// buildListQuery renders filter into a parameterized SELECT
func buildListQuery(filter models.TaskFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	add := func(format string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(format, len(args)))
	}

	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if filter.Completed != nil {
		add("completed = $%d", *filter.Completed)
	}
	if filter.Query != "" {
		args = append(args, "%"+escapeLike(filter.Query)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	if filter.HasDeadline {
		conditions = append(conditions, "deadline_at IS NOT NULL")
	}
	if filter.DeadlineAfter != nil {
		add("deadline_at >= $%d", filter.DeadlineAfter.UTC())
	}
	if filter.DeadlineBefore != nil {
		add("deadline_at < $%d", filter.DeadlineBefore.UTC())
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	return query, args
}

// escapeLike makes % and _ in user input match literally under ILIKE
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func expectOneRow(result sql.Result, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task %d not found: %w", id, sql.ErrNoRows)
	}
	return nil
}

func normalizeTask(t *models.Task) *models.Task {
	t.CreatedAt = t.CreatedAt.UTC()
	t.CompletedAt = utcPtr(t.CompletedAt)
	t.DeadlineAt = utcPtr(t.DeadlineAt)
	return t
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
