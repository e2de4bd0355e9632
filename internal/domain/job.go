package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Priority orders jobs within the queue. Higher values dequeue first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "normal"
	}
}

// ParsePriority maps free-form user input onto a supported priority,
// defaulting to normal.
func ParsePriority(s string) Priority {
	switch s {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "urgent":
		return PriorityUrgent
	default:
		return PriorityNormal
	}
}

// DefaultMaxAttempts bounds dispatch retries when a job carries no explicit
// ceiling.
const DefaultMaxAttempts = 3

// Job is one unit of work producing exactly one generated image.
type Job struct {
	ID          string
	BatchID     string
	ConfigRef   string
	Prompt      string
	Priority    Priority
	Status      JobStatus
	Attempt     int
	MaxAttempts int
	LastError   string
	Result      string
	CreatedAt   time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
}

// NewJob creates a pending job with a fresh identifier.
func NewJob(batchID, configRef, prompt string, priority Priority, maxAttempts int) *Job {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Job{
		ID:          uuid.NewString(),
		BatchID:     batchID,
		ConfigRef:   configRef,
		Prompt:      prompt,
		Priority:    priority,
		Status:      JobStatusPending,
		MaxAttempts: maxAttempts,
		CreatedAt:   time.Now().UTC(),
	}
}

// BatchRequest carries one Submit call. The prompt list comes from
// PreResolved when given, otherwise from LiteralPrompt, otherwise from the
// configuration's base template.
type BatchRequest struct {
	ConfigRef     string
	Count         int
	LiteralPrompt string
	PreResolved   []string
	Priority      string // empty means the configuration's priority
	MaxAttempts   int
}

// BatchHandle identifies the jobs created by one Submit call.
type BatchHandle struct {
	BatchID  string
	JobIDs   []string
	Total    int
	Warnings []string
}
