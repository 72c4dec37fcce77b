package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// QueueCounts holds the backlog counts for a single logical queue.
type QueueCounts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
}

// StatusCounts holds global per-status job counts. Stuck is computed, not
// stored: it counts jobs processing longer than the configured threshold
// at query time, and those jobs are also included in Processing.
type StatusCounts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Retrying   int `json:"retrying"`
	Stuck      int `json:"stuck"`
}

// FailedCounts holds failed-job counts over rolling windows, measured from
// finished_at (or created_at for jobs that never started) relative to the
// query time.
type FailedCounts struct {
	Total     int `json:"total"`
	Recent24h int `json:"recent_24h"`
	Recent1h  int `json:"recent_1h"`
}

// JobStore defines the persistence interface the health engine and retry
// orchestrator read from and transition through. Implementations must make
// each counting method a single bounded query (or one transaction) so a
// result is a consistent snapshot, not a sum of independently-timed reads.
//
// All write methods are compare-and-swap shaped: they report false, not an
// error, when the expected current state no longer holds, so concurrent
// callers cannot double-apply a transition.
type JobStore interface {
	// CountByQueue returns per-queue pending/processing counts in one read.
	CountByQueue(ctx context.Context) (map[string]QueueCounts, error)

	// CountByStatus returns global per-status counts. Jobs processing since
	// before stuckBefore are additionally counted as stuck.
	CountByStatus(ctx context.Context, stuckBefore time.Time) (StatusCounts, error)

	// FailedCounts returns failed-job totals and rolling-window counts using
	// the provided window boundaries.
	FailedCounts(ctx context.Context, since24h, since1h time.Time) (FailedCounts, error)

	// CompletedDurations returns execution durations of jobs completed at or
	// after since.
	CompletedDurations(ctx context.Context, since time.Time) ([]time.Duration, error)

	// RetryCandidates returns failed jobs with attempts remaining whose
	// failure time falls at or after cutoff, oldest first, up to limit.
	RetryCandidates(ctx context.Context, cutoff time.Time, limit int) ([]Job, error)

	// MarkRetrying transitions a job from failed to retrying and increments
	// attempts, guarded on the job still being failed with exactly
	// expectedAttempts. Returns false when the guard no longer holds.
	MarkRetrying(ctx context.Context, id uuid.UUID, expectedAttempts int) (bool, error)

	// Requeue hands a retrying job back to the enqueue path, transitioning
	// it to pending. Returns false if the job is no longer retrying.
	Requeue(ctx context.Context, id uuid.UUID) (bool, error)

	// Flush purges terminal job records (completed, or failed with attempts
	// exhausted) finished before cutoff. Returns the number of rows removed.
	Flush(ctx context.Context, cutoff time.Time) (int64, error)
}
