// Package tasks implements the task operations of the API on top of a
// Repository. It enforces ownership, validates input before any write and
// classifies every task it returns against a single clock reading.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/benvon/eisenhower-todo/internal/eisenhower"
	"github.com/benvon/eisenhower-todo/internal/logger"
	"github.com/benvon/eisenhower-todo/internal/models"
	"github.com/benvon/eisenhower-todo/internal/telemetry"
	"github.com/benvon/eisenhower-todo/internal/validation"
)

const tracerName = "github.com/benvon/eisenhower-todo/internal/services/tasks"

// Repository is the storage the service needs. Lookups of a missing id must
// return an error wrapping sql.ErrNoRows.
type Repository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error)
	CountByUser(ctx context.Context) ([]models.UserTaskCount, error)
}

// CreateInput is the payload of a new task. IsImportant has no default.
type CreateInput struct {
	Title       string     `json:"title" validate:"required,min=3,max=100"`
	Description *string    `json:"description" validate:"omitempty,max=500"`
	IsImportant *bool      `json:"is_important" validate:"required"`
	DeadlineAt  *time.Time `json:"deadline_at"`
}

// TaskPatch carries the fields of a partial update. Pointer fields are applied
// when non-nil; nullable fields are applied when present, and null clears them.
type TaskPatch struct {
	Title       *string               `json:"title" validate:"omitempty,min=3,max=100"`
	Description models.NullableString `json:"description" validate:"omitempty,max=500"`
	IsImportant *bool                 `json:"is_important"`
	DeadlineAt  models.NullableTime   `json:"deadline_at"`
	Completed   *bool                 `json:"completed"`
}

// Empty reports whether the patch changes nothing
func (p TaskPatch) Empty() bool {
	return p.Title == nil && !p.Description.Set && p.IsImportant == nil && !p.DeadlineAt.Set && p.Completed == nil
}

// Service implements the task operations
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
	tracer trace.Tracer
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces the wall clock. The returned times are converted to UTC.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = func() time.Time { return now().UTC() }
	}
}

// WithTracer replaces the globally registered tracer
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// NewService creates a task service
func NewService(repo Repository, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		repo:   repo,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
		tracer: telemetry.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and stores a new task owned by the principal
func (s *Service) Create(ctx context.Context, p models.Principal, in CreateInput) (*models.Task, error) {
	ctx, span := s.start(ctx, "Create", p)
	defer span.End()

	in.Title = validation.SanitizeText(in.Title)
	in.Description = sanitized(in.Description)
	if err := validation.Validate.Struct(in); err != nil {
		return nil, fail(span, invalidArgument("%s", validation.Message(err)))
	}

	now := s.now()
	task := &models.Task{
		UserID:      p.ID,
		Title:       in.Title,
		Description: in.Description,
		IsImportant: *in.IsImportant,
		CreatedAt:   now,
		DeadlineAt:  toUTC(in.DeadlineAt),
	}
	eisenhower.Classify(task, now)

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, s.internal(span, "failed_to_create_task", "Failed to create task", err)
	}

	span.SetAttributes(attribute.Int64("task.id", task.ID), attribute.String("task.quadrant", string(task.Quadrant)))
	s.logger.Info("task_created",
		zap.Int64("task_id", task.ID),
		zap.String("user_id", p.ID.String()),
		zap.String("quadrant", string(task.Quadrant)),
	)
	return task, nil
}

// Get returns one task if the principal may read it
func (s *Service) Get(ctx context.Context, p models.Principal, id int64) (*models.Task, error) {
	ctx, span := s.start(ctx, "Get", p)
	defer span.End()

	return s.load(ctx, span, p, id, eisenhower.ActionRead, s.now())
}

// List returns every task visible to the principal, newest first
func (s *Service) List(ctx context.Context, p models.Principal) ([]*models.Task, error) {
	ctx, span := s.start(ctx, "List", p)
	defer span.End()

	return s.list(ctx, span, models.TaskFilter{UserID: eisenhower.Scope(p)}, s.now())
}

// ListByQuadrant returns the visible tasks whose quadrant at the current time
// equals raw. raw must be one of Q1..Q4.
func (s *Service) ListByQuadrant(ctx context.Context, p models.Principal, raw string) ([]*models.Task, error) {
	ctx, span := s.start(ctx, "ListByQuadrant", p)
	defer span.End()

	if err := validation.Validate.Var(raw, "quadrant"); err != nil {
		return nil, fail(span, invalidArgument("invalid quadrant %q: must be one of Q1, Q2, Q3, Q4", raw))
	}
	quadrant := models.Quadrant(raw)

	all, err := s.list(ctx, span, models.TaskFilter{UserID: eisenhower.Scope(p)}, s.now())
	if err != nil {
		return nil, err
	}
	matched := make([]*models.Task, 0, len(all))
	for _, t := range all {
		if t.Quadrant == quadrant {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// ListByStatus returns the visible tasks that are completed or pending
func (s *Service) ListByStatus(ctx context.Context, p models.Principal, raw string) ([]*models.Task, error) {
	ctx, span := s.start(ctx, "ListByStatus", p)
	defer span.End()

	if err := validation.Validate.Var(raw, "task_status"); err != nil {
		return nil, fail(span, invalidArgument("invalid status %q: must be 'completed' or 'pending'", raw))
	}
	completed := models.TaskStatus(raw).Completed()

	return s.list(ctx, span, models.TaskFilter{UserID: eisenhower.Scope(p), Completed: &completed}, s.now())
}

// Search matches the trimmed query case-insensitively against title and
// description. No match is an empty result, not an error.
func (s *Service) Search(ctx context.Context, p models.Principal, query string) ([]*models.Task, error) {
	ctx, span := s.start(ctx, "Search", p)
	defer span.End()

	if err := validation.ValidateSearchQuery(query); err != nil {
		return nil, fail(span, invalidArgument("%s", err.Error()))
	}
	query = strings.TrimSpace(query)

	s.logger.Debug("task_search",
		zap.String("user_id", p.ID.String()),
		zap.String("query", logger.SanitizeQuery(query)),
	)
	return s.list(ctx, span, models.TaskFilter{UserID: eisenhower.Scope(p), Query: query}, s.now())
}

// ListDueToday returns pending tasks whose deadline falls on today's UTC date
func (s *Service) ListDueToday(ctx context.Context, p models.Principal) ([]*models.Task, error) {
	ctx, span := s.start(ctx, "ListDueToday", p)
	defer span.End()

	now := s.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	pending := false

	return s.list(ctx, span, models.TaskFilter{
		UserID:         eisenhower.Scope(p),
		Completed:      &pending,
		HasDeadline:    true,
		DeadlineAfter:  &start,
		DeadlineBefore: &end,
	}, now)
}

// Update applies a partial update. Every present field is validated before
// anything is written.
func (s *Service) Update(ctx context.Context, p models.Principal, id int64, patch TaskPatch) (*models.Task, error) {
	ctx, span := s.start(ctx, "Update", p)
	defer span.End()
	span.SetAttributes(attribute.Int64("task.id", id))

	now := s.now()
	task, err := s.load(ctx, span, p, id, eisenhower.ActionWrite, now)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return task, nil
	}

	patch.Title = sanitized(patch.Title)
	patch.Description.Value = sanitized(patch.Description.Value)
	if err := validation.Validate.Struct(patch); err != nil {
		return nil, fail(span, invalidArgument("%s", validation.Message(err)))
	}
	if patch.Completed != nil && !*patch.Completed && task.Completed {
		return nil, fail(span, invalidArgument("task %d is completed and cannot be reopened", id))
	}

	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description.Set {
		task.Description = patch.Description.Value
	}
	if patch.IsImportant != nil {
		task.IsImportant = *patch.IsImportant
	}
	if patch.DeadlineAt.Set {
		task.DeadlineAt = toUTC(patch.DeadlineAt.Value)
	}
	if patch.Completed != nil && *patch.Completed {
		markCompleted(task, now)
	}
	eisenhower.Classify(task, now)

	if err := s.repo.Update(ctx, task); err != nil {
		return nil, s.storeError(span, id, "failed_to_update_task", err)
	}

	s.logger.Info("task_updated",
		zap.Int64("task_id", id),
		zap.String("user_id", p.ID.String()),
		zap.String("quadrant", string(task.Quadrant)),
	)
	return task, nil
}

// Complete marks a task as done. Completing a completed task refreshes
// completed_at.
func (s *Service) Complete(ctx context.Context, p models.Principal, id int64) (*models.Task, error) {
	ctx, span := s.start(ctx, "Complete", p)
	defer span.End()
	span.SetAttributes(attribute.Int64("task.id", id))

	now := s.now()
	task, err := s.load(ctx, span, p, id, eisenhower.ActionWrite, now)
	if err != nil {
		return nil, err
	}
	markCompleted(task, now)

	if err := s.repo.Update(ctx, task); err != nil {
		return nil, s.storeError(span, id, "failed_to_complete_task", err)
	}

	s.logger.Info("task_completed", zap.Int64("task_id", id), zap.String("user_id", p.ID.String()))
	return task, nil
}

// Delete removes a task and returns what was removed
func (s *Service) Delete(ctx context.Context, p models.Principal, id int64) (*models.DeletedTask, error) {
	ctx, span := s.start(ctx, "Delete", p)
	defer span.End()
	span.SetAttributes(attribute.Int64("task.id", id))

	task, err := s.load(ctx, span, p, id, eisenhower.ActionDelete, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, s.storeError(span, id, "failed_to_delete_task", err)
	}

	s.logger.Info("task_deleted", zap.Int64("task_id", id), zap.String("user_id", p.ID.String()))
	return &models.DeletedTask{ID: task.ID, Title: task.Title}, nil
}

// Stats aggregates the tasks visible to the principal
func (s *Service) Stats(ctx context.Context, p models.Principal) (*models.Stats, error) {
	ctx, span := s.start(ctx, "Stats", p)
	defer span.End()

	now := s.now()
	all, err := s.list(ctx, span, models.TaskFilter{UserID: eisenhower.Scope(p)}, now)
	if err != nil {
		return nil, err
	}
	stats := eisenhower.Aggregate(all, now)
	return &stats, nil
}

// Deadlines reports the pending tasks that carry a deadline, soonest first
func (s *Service) Deadlines(ctx context.Context, p models.Principal) (*models.DeadlineReport, error) {
	ctx, span := s.start(ctx, "Deadlines", p)
	defer span.End()

	pending := false
	all, err := s.list(ctx, span, models.TaskFilter{
		UserID:      eisenhower.Scope(p),
		Completed:   &pending,
		HasDeadline: true,
	}, s.now())
	if err != nil {
		return nil, err
	}

	report := &models.DeadlineReport{Tasks: make([]models.DeadlineEntry, 0, len(all))}
	for _, t := range all {
		if t.DeadlineAt == nil || t.DaysUntilDeadline == nil {
			continue
		}
		report.Tasks = append(report.Tasks, models.DeadlineEntry{
			ID:                t.ID,
			Title:             t.Title,
			Description:       t.Description,
			Quadrant:          t.Quadrant,
			DeadlineAt:        *t.DeadlineAt,
			DaysUntilDeadline: *t.DaysUntilDeadline,
		})
	}
	slices.SortStableFunc(report.Tasks, func(a, b models.DeadlineEntry) int {
		if c := a.DeadlineAt.Compare(b.DeadlineAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	report.Total = len(report.Tasks)
	return report, nil
}

// UserTaskCounts lists every user with the number of tasks they own. Admin only.
func (s *Service) UserTaskCounts(ctx context.Context, p models.Principal) ([]models.UserTaskCount, error) {
	ctx, span := s.start(ctx, "UserTaskCounts", p)
	defer span.End()

	if !p.IsAdmin() {
		s.logger.Warn("admin_access_denied", zap.String("user_id", p.ID.String()))
		return nil, fail(span, forbidden("admin role required"))
	}
	counts, err := s.repo.CountByUser(ctx)
	if err != nil {
		return nil, s.internal(span, "failed_to_count_tasks", "Failed to count tasks", err)
	}
	if counts == nil {
		counts = []models.UserTaskCount{}
	}
	return counts, nil
}

// load fetches a task, checks access for action and classifies it at now
func (s *Service) load(ctx context.Context, span trace.Span, p models.Principal, id int64, action eisenhower.Action, now time.Time) (*models.Task, error) {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError(span, id, "failed_to_get_task", err)
	}
	if !eisenhower.CanAccess(&p, task, action) {
		s.logger.Warn("task_access_denied",
			zap.Int64("task_id", id),
			zap.String("user_id", p.ID.String()),
			zap.String("action", string(action)),
		)
		return nil, fail(span, forbidden("you do not have access to this task"))
	}
	return eisenhower.Classify(task, now), nil
}

func (s *Service) list(ctx context.Context, span trace.Span, filter models.TaskFilter, now time.Time) ([]*models.Task, error) {
	all, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, s.internal(span, "failed_to_list_tasks", "Failed to list tasks", err)
	}
	if all == nil {
		all = []*models.Task{}
	}
	span.SetAttributes(attribute.Int("task.count", len(all)))
	return eisenhower.ClassifyAll(all, now), nil
}

// storeError maps a repository error for id onto NotFound or Internal
func (s *Service) storeError(span trace.Span, id int64, event string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fail(span, notFound(id))
	}
	return s.internal(span, event, "Failed to access task", err)
}

func (s *Service) internal(span trace.Span, event, message string, err error) error {
	s.logger.Error(event, zap.Error(err))
	return fail(span, internal(message, err))
}

func (s *Service) start(ctx context.Context, op string, p models.Principal) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "tasks."+op, trace.WithAttributes(
		attribute.String("user.id", p.ID.String()),
		attribute.String("user.role", string(p.Role)),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(CodeOf(err)))
	return err
}

func sanitized(text *string) *string {
	if text == nil {
		return nil
	}
	clean := validation.SanitizeText(*text)
	return &clean
}

func markCompleted(task *models.Task, now time.Time) {
	task.Completed = true
	completedAt := now
	task.CompletedAt = &completedAt
}

func toUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
