package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobDurationOnlyForCompleted(t *testing.T) {
	started := testClock.Add(-10 * time.Second)
	finished := testClock

	job := Job{Status: StatusCompleted, StartedAt: &started, FinishedAt: &finished}
	d, ok := job.Duration()
	assert.True(t, ok)
	assert.Equal(t, 10*time.Second, d)

	job.Status = StatusFailed
	_, ok = job.Duration()
	assert.False(t, ok)

	job = Job{Status: StatusCompleted}
	_, ok = job.Duration()
	assert.False(t, ok)
}

func TestJobDeadLettered(t *testing.T) {
	job := Job{Status: StatusFailed, Attempts: 3, MaxAttempts: 3}
	assert.True(t, job.DeadLettered())

	job.Attempts = 2
	assert.False(t, job.DeadLettered())

	job = Job{Status: StatusCompleted, Attempts: 3, MaxAttempts: 3}
	assert.False(t, job.DeadLettered())
}

func TestJobStuck(t *testing.T) {
	started := testClock.Add(-2 * time.Hour)

	job := Job{Status: StatusProcessing, StartedAt: &started}
	assert.True(t, job.Stuck(30*time.Minute, testClock))
	assert.False(t, job.Stuck(3*time.Hour, testClock))

	job.Status = StatusCompleted
	assert.False(t, job.Stuck(30*time.Minute, testClock))

	job = Job{Status: StatusProcessing}
	assert.False(t, job.Stuck(30*time.Minute, testClock), "no start time means not stuck")
}

func TestJobFailedAtFallsBackToCreatedAt(t *testing.T) {
	created := testClock.Add(-time.Hour)
	finished := testClock.Add(-10 * time.Minute)

	job := Job{CreatedAt: created, FinishedAt: &finished}
	assert.Equal(t, finished, job.FailedAt())

	job.FinishedAt = nil
	assert.Equal(t, created, job.FailedAt())
}
