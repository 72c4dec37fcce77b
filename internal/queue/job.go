package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current lifecycle state of a job
type JobStatus string

// Possible job status values
const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusRetrying   JobStatus = "retrying"
)

// Job represents a unit of background work stored in the job table.
// The lifecycle is pending → processing → {completed | failed}, with
// failed → retrying → pending while attempts remain. A failed job whose
// attempts are exhausted is terminal (dead-lettered) and only removed by
// an explicit flush.
type Job struct {
	// ID is the job's unique identifier
	ID uuid.UUID

	// Queue is the logical queue name used for backlog accounting
	Queue string

	// Status is the current lifecycle state
	Status JobStatus

	// Attempts counts executions so far; invariant Attempts <= MaxAttempts
	Attempts int

	// MaxAttempts caps retries; once reached, a failed job is terminal
	MaxAttempts int

	// CreatedAt is when the job was enqueued
	CreatedAt time.Time

	// StartedAt is when a worker last claimed the job (nil if never started)
	StartedAt *time.Time

	// FinishedAt is set only on a terminal transition (nil otherwise)
	FinishedAt *time.Time

	// LastError holds the most recent execution error; present only when
	// Status is failed
	LastError string
}

// Duration returns the execution time of a completed job. The second return
// value is false for any job that is not completed or is missing timestamps.
func (j *Job) Duration() (time.Duration, bool) {
	if j.Status != StatusCompleted || j.StartedAt == nil || j.FinishedAt == nil {
		return 0, false
	}
	return j.FinishedAt.Sub(*j.StartedAt), true
}

// DeadLettered reports whether the job is a terminal failure: failed with
// all retry attempts exhausted.
func (j *Job) DeadLettered() bool {
	return j.Status == StatusFailed && j.Attempts >= j.MaxAttempts
}

// Stuck reports whether the job has been processing longer than the given
// threshold as of now. Stuck is a derived pseudo-state, never stored.
func (j *Job) Stuck(threshold time.Duration, now time.Time) bool {
	if j.Status != StatusProcessing || j.StartedAt == nil {
		return false
	}
	return now.Sub(*j.StartedAt) > threshold
}

// FailedAt returns the reference time used for failure-window accounting:
// FinishedAt when set, otherwise CreatedAt for jobs that never started.
func (j *Job) FailedAt() time.Time {
	if j.FinishedAt != nil {
		return *j.FinishedAt
	}
	return j.CreatedAt
}
