package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeReclassifyUser recomputes the stored quadrant of one user's deadlined tasks
	JobTypeReclassifyUser JobType = "reclassify_user"
)

// DefaultMaxRetries is how often a failed job is retried before dead-lettering
const DefaultMaxRetries = 3

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID  `json:"id"`
	Type       JobType    `json:"type"`
	UserID     uuid.UUID  `json:"user_id"`
	NotBefore  *time.Time `json:"not_before,omitempty"` // nil = immediate
	NotAfter   *time.Time `json:"not_after,omitempty"`  // nil = never expires
	CreatedAt  time.Time  `json:"created_at"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, userID uuid.UUID) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		UserID:     userID,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: DefaultMaxRetries,
	}
}

// ShouldProcess reports whether the job is inside its processing window at now
func (j *Job) ShouldProcess(now time.Time) bool {
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	return !j.IsExpired(now)
}

// IsExpired reports whether NotAfter has passed
func (j *Job) IsExpired(now time.Time) bool {
	return j.NotAfter != nil && now.After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// Retry returns a copy of the job for another attempt after delay
func (j *Job) Retry(now time.Time, delay time.Duration) *Job {
	next := *j
	next.RetryCount++
	notBefore := now.Add(delay)
	next.NotBefore = &notBefore
	return &next
}
