package eisenhower

import (
	"github.com/google/uuid"

	"github.com/benvon/eisenhower-todo/internal/models"
)

// Action is an operation a principal attempts on a task
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

// CanAccess decides whether principal may perform action on task.
// Admins may do anything; everyone else only touches their own tasks.
// The rule is the same for every action.
func CanAccess(principal *models.Principal, task *models.Task, action Action) bool {
	if principal == nil || task == nil {
		return false
	}
	if principal.IsAdmin() {
		return true
	}
	return principal.ID != uuid.Nil && task.UserID == principal.ID
}

// Scope returns the owner filter for listings: nil for admins (all tasks),
// otherwise the principal's own id.
func Scope(principal models.Principal) *uuid.UUID {
	if principal.IsAdmin() {
		return nil
	}
	id := principal.ID
	return &id
}
