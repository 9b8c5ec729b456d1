// Package eisenhower holds the pure rules of the task matrix: urgency and
// quadrant derivation, ownership checks and aggregate statistics. Nothing in
// here reads the clock; callers pass "now".
package eisenhower

import (
	"time"

	"github.com/benvon/eisenhower-todo/internal/models"
)

// UrgencyThresholdDays is the largest whole-day distance to a deadline that
// still counts as urgent. Overdue tasks are always urgent.
const UrgencyThresholdDays = 3

const day = 24 * time.Hour

// daysBetween returns floor((deadline - now) / 24h)
func daysBetween(deadline, now time.Time) int {
	d := deadline.Sub(now)
	days := int(d / day)
	if d < 0 && d%day != 0 {
		days--
	}
	return days
}

// DaysUntilDeadline returns the whole days left until deadline, negative when
// overdue, or nil when there is no deadline.
func DaysUntilDeadline(deadline *time.Time, now time.Time) *int {
	if deadline == nil {
		return nil
	}
	days := daysBetween(*deadline, now)
	return &days
}

// IsUrgent reports whether a deadline is at most UrgencyThresholdDays away.
func IsUrgent(deadline *time.Time, now time.Time) bool {
	if deadline == nil {
		return false
	}
	return daysBetween(*deadline, now) <= UrgencyThresholdDays
}

// QuadrantFor maps an (important, urgent) pair to its quadrant.
func QuadrantFor(important, urgent bool) models.Quadrant {
	switch {
	case important && urgent:
		return models.QuadrantQ1
	case important:
		return models.QuadrantQ2
	case urgent:
		return models.QuadrantQ3
	default:
		return models.QuadrantQ4
	}
}

// Classify refreshes the derived fields of task against now and returns it.
func Classify(task *models.Task, now time.Time) *models.Task {
	if task == nil {
		return nil
	}
	task.IsUrgent = IsUrgent(task.DeadlineAt, now)
	task.DaysUntilDeadline = DaysUntilDeadline(task.DeadlineAt, now)
	task.Quadrant = QuadrantFor(task.IsImportant, task.IsUrgent)
	return task
}

// ClassifyAll applies Classify to every task in place.
func ClassifyAll(tasks []*models.Task, now time.Time) []*models.Task {
	for _, t := range tasks {
		Classify(t, now)
	}
	return tasks
}
