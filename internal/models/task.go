package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Quadrant is a cell of the Eisenhower matrix
type Quadrant string

const (
	QuadrantQ1 Quadrant = "Q1" // important and urgent
	QuadrantQ2 Quadrant = "Q2" // important, not urgent
	QuadrantQ3 Quadrant = "Q3" // urgent, not important
	QuadrantQ4 Quadrant = "Q4" // neither
)

// Quadrants lists every quadrant in display order
var Quadrants = []Quadrant{QuadrantQ1, QuadrantQ2, QuadrantQ3, QuadrantQ4}

// Valid reports whether q is one of Q1..Q4
func (q Quadrant) Valid() bool {
	switch q {
	case QuadrantQ1, QuadrantQ2, QuadrantQ3, QuadrantQ4:
		return true
	default:
		return false
	}
}

// TaskStatus is the completion filter accepted by the status listing
type TaskStatus string

const (
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusPending   TaskStatus = "pending"
)

// Completed maps the status to the stored completed flag
func (s TaskStatus) Completed() bool {
	return s == TaskStatusCompleted
}

// Task represents a to-do item. IsUrgent and DaysUntilDeadline are derived
// and never read back from storage.
type Task struct {
	ID                int64      `json:"id" db:"id"`
	UserID            uuid.UUID  `json:"-" db:"user_id"`
	Title             string     `json:"title" db:"title"`
	Description       *string    `json:"description" db:"description"`
	IsImportant       bool       `json:"is_important" db:"is_important"`
	IsUrgent          bool       `json:"is_urgent" db:"-"`
	Quadrant          Quadrant   `json:"quadrant" db:"quadrant"`
	Completed         bool       `json:"completed" db:"completed"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	CompletedAt       *time.Time `json:"completed_at" db:"completed_at"`
	DeadlineAt        *time.Time `json:"deadline_at" db:"deadline_at"`
	DaysUntilDeadline *int       `json:"days_until_deadline" db:"-"`
}

// TaskFilter narrows a task listing. Nil fields are not applied.
type TaskFilter struct {
	UserID         *uuid.UUID
	Completed      *bool
	Query          string
	HasDeadline    bool
	DeadlineAfter  *time.Time // inclusive
	DeadlineBefore *time.Time // exclusive
}

// DeletedTask identifies a removed task in the delete confirmation
type DeletedTask struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// DeadlineEntry is one row of the pending-deadlines report
type DeadlineEntry struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	Description       *string   `json:"description"`
	Quadrant          Quadrant  `json:"quadrant"`
	DeadlineAt        time.Time `json:"deadline_at"`
	DaysUntilDeadline int       `json:"days_until_deadline"`
}

// DeadlineReport lists pending tasks that carry a deadline
type DeadlineReport struct {
	Total int             `json:"total_pending_with_deadlines"`
	Tasks []DeadlineEntry `json:"tasks"`
}

// NullableString distinguishes an absent JSON field from an explicit null.
type NullableString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON only runs when the key is present, so Set tracks presence.
func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(data, []byte("null")) {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// NullableTime distinguishes an absent JSON field from an explicit null.
type NullableTime struct {
	Set   bool
	Value *time.Time
}

// UnmarshalJSON accepts RFC 3339 timestamps or null
func (n *NullableTime) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(data, []byte("null")) {
		n.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	n.Value = &t
	return nil
}
