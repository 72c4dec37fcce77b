package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// TotalQueue is the aggregated pseudo-queue entry added to QueueStatus
// results alongside the real per-queue counts.
const TotalQueue = "total"

// HealthPolicy holds the externally configured thresholds the engine uses
// to derive the healthy verdict. The engine hard-codes no magic numbers
// beyond these documented defaults.
type HealthPolicy struct {
	// StuckAfter is how long a job may sit in processing before it is
	// counted as stuck
	StuckAfter time.Duration

	// MaxFailedRecent1h is the largest tolerated failed-job count over the
	// trailing hour
	MaxFailedRecent1h int

	// MaxPendingPerQueue is the backlog ceiling for any single queue
	MaxPendingPerQueue int
}

// DefaultHealthPolicy returns a HealthPolicy with reasonable defaults.
// Production values come from configuration.
func DefaultHealthPolicy() HealthPolicy {
	return HealthPolicy{
		StuckAfter:         30 * time.Minute,
		MaxFailedRecent1h:  10,
		MaxPendingPerQueue: 1000,
	}
}

// Evaluate applies the decision policy to already-collected counts.
// Unhealthy if any job is stuck, the trailing-hour failure count exceeds
// its ceiling, or any queue backlog exceeds its ceiling.
func (p HealthPolicy) Evaluate(stats StatusCounts, failed FailedCounts, queues map[string]QueueCounts) bool {
	if stats.Stuck > 0 {
		return false
	}
	if failed.Recent1h > p.MaxFailedRecent1h {
		return false
	}
	for name, counts := range queues {
		if name == TotalQueue {
			continue
		}
		if counts.Pending > p.MaxPendingPerQueue {
			return false
		}
	}
	return true
}

// PerformanceMetrics summarizes completed-job latency over the trailing
// 24 hours. All fields are zero when no jobs completed in the window.
type PerformanceMetrics struct {
	Completed24h  int     `json:"jobs_completed_24h"`
	AvgSeconds    float64 `json:"avg_duration_seconds"`
	MinSeconds    float64 `json:"min_duration_seconds"`
	MaxSeconds    float64 `json:"max_duration_seconds"`
	MedianSeconds float64 `json:"median_duration_seconds"`
}

// HealthSnapshot is the engine's point-in-time aggregate view of queue,
// job, failure, and performance state. It is assembled per call and never
// persisted. Sub-queries are individually consistent but the snapshot as a
// whole is approximate-as-of-call-time under concurrent writers.
type HealthSnapshot struct {
	Timestamp   time.Time              `json:"timestamp"`
	Queues      map[string]QueueCounts `json:"queues"`
	JobStats    StatusCounts           `json:"job_stats"`
	FailedJobs  FailedCounts           `json:"failed_jobs"`
	Performance PerformanceMetrics     `json:"performance"`
	Healthy     bool                   `json:"healthy"`
}

// HealthEngine computes queue health from job store snapshots. All methods
// are read-only against the store at call time; nothing is cached across
// calls, so each result reflects current state.
type HealthEngine struct {
	store  JobStore
	policy HealthPolicy
	logger *slog.Logger

	// now is the clock used for window math; overridable in tests
	now func() time.Time
}

// NewHealthEngine creates a HealthEngine over the given store and policy.
func NewHealthEngine(store JobStore, policy HealthPolicy, logger *slog.Logger) *HealthEngine {
	return &HealthEngine{
		store:  store,
		policy: policy,
		logger: logger.With("component", "health_engine"),
		now:    time.Now,
	}
}

// QueueStatus returns per-queue pending/processing counts plus an
// aggregated "total" entry.
func (e *HealthEngine) QueueStatus(ctx context.Context) (map[string]QueueCounts, error) {
	queues, err := e.store.CountByQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by queue: %w", err)
	}

	var total QueueCounts
	for _, counts := range queues {
		total.Pending += counts.Pending
		total.Processing += counts.Processing
	}
	queues[TotalQueue] = total

	return queues, nil
}

// JobStatusStats returns global per-status counts. Stuck is derived at
// call time from the configured StuckAfter threshold.
func (e *HealthEngine) JobStatusStats(ctx context.Context) (StatusCounts, error) {
	stuckBefore := e.now().Add(-e.policy.StuckAfter)

	stats, err := e.store.CountByStatus(ctx, stuckBefore)
	if err != nil {
		return StatusCounts{}, fmt.Errorf("failed to count jobs by status: %w", err)
	}

	return stats, nil
}

// FailedJobStats returns failed-job counts over the trailing 24 hour and
// 1 hour windows, relative to call time.
func (e *HealthEngine) FailedJobStats(ctx context.Context) (FailedCounts, error) {
	now := e.now()

	failed, err := e.store.FailedCounts(ctx, now.Add(-24*time.Hour), now.Add(-time.Hour))
	if err != nil {
		return FailedCounts{}, fmt.Errorf("failed to count failed jobs: %w", err)
	}

	return failed, nil
}

// PerformanceMetrics computes latency statistics over jobs completed in the
// trailing 24 hours. With zero completed jobs every field is zero; that is
// a valid result, not an error.
func (e *HealthEngine) PerformanceMetrics(ctx context.Context) (PerformanceMetrics, error) {
	durations, err := e.store.CompletedDurations(ctx, e.now().Add(-24*time.Hour))
	if err != nil {
		return PerformanceMetrics{}, fmt.Errorf("failed to load completed durations: %w", err)
	}

	return summarizeDurations(durations), nil
}

// IsHealthy derives the single boolean health verdict from fresh status,
// failure, and backlog reads. It deliberately skips the latency query so
// automated probes stay cheap.
func (e *HealthEngine) IsHealthy(ctx context.Context) (bool, error) {
	stats, err := e.JobStatusStats(ctx)
	if err != nil {
		return false, err
	}

	failed, err := e.FailedJobStats(ctx)
	if err != nil {
		return false, err
	}

	queues, err := e.QueueStatus(ctx)
	if err != nil {
		return false, err
	}

	return e.policy.Evaluate(stats, failed, queues), nil
}

// Snapshot assembles the full health view: queue backlogs, status counts,
// failure windows, performance metrics, and the healthy verdict.
func (e *HealthEngine) Snapshot(ctx context.Context) (*HealthSnapshot, error) {
	queues, err := e.QueueStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := e.JobStatusStats(ctx)
	if err != nil {
		return nil, err
	}

	failed, err := e.FailedJobStats(ctx)
	if err != nil {
		return nil, err
	}

	perf, err := e.PerformanceMetrics(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &HealthSnapshot{
		Timestamp:   e.now().UTC(),
		Queues:      queues,
		JobStats:    stats,
		FailedJobs:  failed,
		Performance: perf,
		Healthy:     e.policy.Evaluate(stats, failed, queues),
	}

	if !snapshot.Healthy {
		e.logger.Warn("queue reported unhealthy",
			"stuck", stats.Stuck,
			"failed_recent_1h", failed.Recent1h,
			"pending_total", queues[TotalQueue].Pending)
	}

	return snapshot, nil
}

// summarizeDurations reduces a duration set to the reported metrics.
// Median uses the standard midpoint rule: the middle element for odd
// counts, the mean of the two middle elements for even counts.
func summarizeDurations(durations []time.Duration) PerformanceMetrics {
	if len(durations) == 0 {
		return PerformanceMetrics{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	n := len(sorted)
	var median time.Duration
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return PerformanceMetrics{
		Completed24h:  n,
		AvgSeconds:    (sum / time.Duration(n)).Seconds(),
		MinSeconds:    sorted[0].Seconds(),
		MaxSeconds:    sorted[n-1].Seconds(),
		MedianSeconds: median.Seconds(),
	}
}
