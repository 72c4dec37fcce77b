package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryJobStore is an in-memory JobStore used by tests and local
// development. It applies the same compare-and-swap discipline as the
// production store so concurrency properties can be exercised without a
// database.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*Job

	// failWith, when set, makes every method fail; used to simulate an
	// unreachable store
	failWith error
}

// NewMemoryJobStore creates an empty MemoryJobStore.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[uuid.UUID]*Job),
	}
}

// Put inserts or replaces a job record.
func (s *MemoryJobStore) Put(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := job
	s.jobs[job.ID] = &copied
}

// Get returns a copy of the job with the given ID.
func (s *MemoryJobStore) Get(id uuid.UUID) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// FailWith makes every subsequent call return the given error, simulating
// an unreachable store. Pass nil to restore normal operation.
func (s *MemoryJobStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// CountByQueue implements JobStore.
func (s *MemoryJobStore) CountByQueue(ctx context.Context) (map[string]QueueCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}

	queues := make(map[string]QueueCounts)
	for _, job := range s.jobs {
		counts := queues[job.Queue]
		switch job.Status {
		case StatusPending:
			counts.Pending++
		case StatusProcessing:
			counts.Processing++
		}
		queues[job.Queue] = counts
	}
	return queues, nil
}

// CountByStatus implements JobStore.
func (s *MemoryJobStore) CountByStatus(ctx context.Context, stuckBefore time.Time) (StatusCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return StatusCounts{}, s.failWith
	}

	var stats StatusCounts
	for _, job := range s.jobs {
		switch job.Status {
		case StatusPending:
			stats.Pending++
		case StatusProcessing:
			stats.Processing++
			if job.StartedAt != nil && job.StartedAt.Before(stuckBefore) {
				stats.Stuck++
			}
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		case StatusRetrying:
			stats.Retrying++
		}
	}
	return stats, nil
}

// FailedCounts implements JobStore.
func (s *MemoryJobStore) FailedCounts(ctx context.Context, since24h, since1h time.Time) (FailedCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return FailedCounts{}, s.failWith
	}

	var failed FailedCounts
	for _, job := range s.jobs {
		if job.Status != StatusFailed {
			continue
		}
		failed.Total++
		at := job.FailedAt()
		if !at.Before(since24h) {
			failed.Recent24h++
		}
		if !at.Before(since1h) {
			failed.Recent1h++
		}
	}
	return failed, nil
}

// CompletedDurations implements JobStore.
func (s *MemoryJobStore) CompletedDurations(ctx context.Context, since time.Time) ([]time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}

	var durations []time.Duration
	for _, job := range s.jobs {
		if job.Status != StatusCompleted || job.FinishedAt == nil || job.FinishedAt.Before(since) {
			continue
		}
		if d, ok := job.Duration(); ok {
			durations = append(durations, d)
		}
	}
	return durations, nil
}

// RetryCandidates implements JobStore.
func (s *MemoryJobStore) RetryCandidates(ctx context.Context, cutoff time.Time, limit int) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}

	var candidates []Job
	for _, job := range s.jobs {
		if job.Status != StatusFailed || job.Attempts >= job.MaxAttempts {
			continue
		}
		if job.FailedAt().Before(cutoff) {
			continue
		}
		candidates = append(candidates, *job)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].FailedAt().Before(candidates[j].FailedAt())
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// MarkRetrying implements JobStore.
func (s *MemoryJobStore) MarkRetrying(ctx context.Context, id uuid.UUID, expectedAttempts int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return false, s.failWith
	}

	job, ok := s.jobs[id]
	if !ok {
		return false, ErrJobNotFound
	}
	if job.Status != StatusFailed || job.Attempts != expectedAttempts || job.Attempts >= job.MaxAttempts {
		return false, nil
	}

	job.Status = StatusRetrying
	job.Attempts++
	return true, nil
}

// Requeue implements JobStore.
func (s *MemoryJobStore) Requeue(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return false, s.failWith
	}

	job, ok := s.jobs[id]
	if !ok {
		return false, ErrJobNotFound
	}
	if job.Status != StatusRetrying {
		return false, nil
	}

	job.Status = StatusPending
	job.StartedAt = nil
	job.FinishedAt = nil
	job.LastError = ""
	return true, nil
}

// Flush implements JobStore.
func (s *MemoryJobStore) Flush(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}

	var removed int64
	for id, job := range s.jobs {
		terminal := job.Status == StatusCompleted || job.DeadLettered()
		if !terminal {
			continue
		}
		if job.FailedAt().Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed, nil
}
