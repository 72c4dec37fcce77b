package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryOutcome describes what happened to a single job during a retry
// attempt.
type RetryOutcome string

// Possible retry outcomes
const (
	// RetryRequeued means the job was transitioned back to pending with
	// its attempt counter incremented
	RetryRequeued RetryOutcome = "requeued"

	// RetrySkipped means the job was left untouched; Reason explains why
	// (attempts exhausted, lost the claim race, already requeued)
	RetrySkipped RetryOutcome = "skipped"
)

// RetryResult pairs an outcome with the skip reason, if any.
type RetryResult struct {
	Outcome RetryOutcome
	Reason  string
}

// BatchResult reports the counts of a full retry sweep. Individual job
// failures never abort the batch.
type BatchResult struct {
	Attempted int `json:"attempted"`
	Requeued  int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// RetryPolicy holds the externally configured knobs for the retry sweep.
type RetryPolicy struct {
	// Window bounds how old a failure may be and still be resurrected;
	// dead-lettered jobs older than this are excluded to avoid reviving
	// stale work
	Window time.Duration

	// BatchLimit caps how many jobs a single sweep will touch
	BatchLimit int
}

// DefaultRetryPolicy returns a RetryPolicy with reasonable defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Window:     24 * time.Hour,
		BatchLimit: 100,
	}
}

// RetryOrchestrator selects eligible failed jobs and re-enqueues them under
// the bounded-attempts policy. It never creates or deletes jobs; it only
// transitions status and attempts through compare-and-swap store operations,
// so concurrent orchestrator instances cannot double-increment a job.
type RetryOrchestrator struct {
	store  JobStore
	policy RetryPolicy
	logger *slog.Logger
	now    func() time.Time
}

// NewRetryOrchestrator creates a RetryOrchestrator over the given store.
func NewRetryOrchestrator(store JobStore, policy RetryPolicy, logger *slog.Logger) *RetryOrchestrator {
	return &RetryOrchestrator{
		store:  store,
		policy: policy,
		logger: logger.With("component", "retry_orchestrator"),
		now:    time.Now,
	}
}

// RetryEligible returns the failed jobs currently eligible for retry:
// attempts below the cap and failure age within the configured window.
// Jobs with attempts == max_attempts never appear here.
func (o *RetryOrchestrator) RetryEligible(ctx context.Context) ([]Job, error) {
	cutoff := o.now().Add(-o.policy.Window)

	jobs, err := o.store.RetryCandidates(ctx, cutoff, o.policy.BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load retry candidates: %w", err)
	}

	return jobs, nil
}

// Retry moves one failed job back onto the queue: failed → retrying with
// attempts incremented, then retrying → pending via the store's enqueue
// path. The first transition is a compare-and-swap on both status and the
// observed attempt count, so invoking Retry twice for the same observation
// increments attempts exactly once; the loser sees a skip, not an error.
func (o *RetryOrchestrator) Retry(ctx context.Context, job Job) (RetryResult, error) {
	if job.DeadLettered() {
		return RetryResult{Outcome: RetrySkipped, Reason: "attempts exhausted"}, nil
	}

	claimed, err := o.store.MarkRetrying(ctx, job.ID, job.Attempts)
	if err != nil {
		return RetryResult{}, fmt.Errorf("failed to mark job %s retrying: %w", job.ID, err)
	}
	if !claimed {
		// Another orchestrator won the race, or the job already moved on.
		return RetryResult{Outcome: RetrySkipped, Reason: "job no longer in failed state"}, nil
	}

	requeued, err := o.store.Requeue(ctx, job.ID)
	if err != nil {
		// The job stays in retrying; it will surface in status stats until
		// a later sweep or operator action resolves it.
		return RetryResult{}, fmt.Errorf("failed to requeue job %s: %w", job.ID, err)
	}
	if !requeued {
		return RetryResult{Outcome: RetrySkipped, Reason: "job already requeued"}, nil
	}

	o.logger.Info("job requeued for retry",
		"job_id", job.ID,
		"queue", job.Queue,
		"attempt", job.Attempts+1,
		"max_attempts", job.MaxAttempts)

	return RetryResult{Outcome: RetryRequeued}, nil
}

// RetryAll sweeps every currently eligible job once and reports the batch
// counts. Per-job errors are logged and counted as failed; the sweep always
// runs to the end of the candidate list.
func (o *RetryOrchestrator) RetryAll(ctx context.Context) (BatchResult, error) {
	jobs, err := o.RetryEligible(ctx)
	if err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	for _, job := range jobs {
		result.Attempted++

		res, err := o.Retry(ctx, job)
		if err != nil {
			result.Failed++
			o.logger.Error("retry failed",
				"job_id", job.ID,
				"queue", job.Queue,
				"error", err)
			continue
		}

		switch res.Outcome {
		case RetryRequeued:
			result.Requeued++
		case RetrySkipped:
			result.Skipped++
			o.logger.Debug("retry skipped",
				"job_id", job.ID,
				"reason", res.Reason)
		}
	}

	o.logger.Info("retry sweep finished",
		"attempted", result.Attempted,
		"requeued", result.Requeued,
		"skipped", result.Skipped,
		"failed", result.Failed)

	return result, nil
}
