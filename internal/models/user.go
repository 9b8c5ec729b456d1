package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the access level of a user
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User represents a user in the system
type User struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Email         string    `json:"email" db:"email"`
	ProviderID    *string   `json:"provider_id,omitempty" db:"provider_id"`
	Name          *string   `json:"name,omitempty" db:"name"`
	Role          Role      `json:"role" db:"role"`
	EmailVerified bool      `json:"email_verified" db:"email_verified"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Principal returns the acting identity for this user
func (u *User) Principal() Principal {
	role := u.Role
	if !role.Valid() {
		role = RoleUser
	}
	return Principal{ID: u.ID, Role: role}
}

// Principal is the authenticated actor of a request
type Principal struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// IsAdmin reports whether the principal has the admin role
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// UserTaskCount is a user together with the number of tasks they own
type UserTaskCount struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      *string   `json:"name" db:"name"`
	Role      Role      `json:"role" db:"role"`
	TaskCount int       `json:"task_count" db:"task_count"`
}
