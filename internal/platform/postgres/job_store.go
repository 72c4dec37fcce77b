package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskward/internal/queue"
)

// PostgresJobStore implements queue.JobStore using a PostgreSQL database.
type PostgresJobStore struct {
	db     DBTX
	logger *slog.Logger
}

// Ensure PostgresJobStore implements queue.JobStore at compile time.
var _ queue.JobStore = (*PostgresJobStore)(nil)

// NewPostgresJobStore creates a new PostgresJobStore. Accepts any DBTX so
// callers can pass either a *sql.DB or a transaction.
func NewPostgresJobStore(db DBTX, logger *slog.Logger) *PostgresJobStore {
	return &PostgresJobStore{
		db:     db,
		logger: logger.With("component", "job_store"),
	}
}

// WithTx returns a copy of the store bound to the given transaction.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) *PostgresJobStore {
	return &PostgresJobStore{db: tx, logger: s.logger}
}

// CountByQueue returns per-queue pending/processing counts. A single
// aggregate query keeps the counts mutually consistent.
func (s *PostgresJobStore) CountByQueue(ctx context.Context) (map[string]queue.QueueCounts, error) {
	query := `
		SELECT queue,
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'processing')
		FROM jobs
		WHERE status IN ('pending', 'processing')
		GROUP BY queue`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError("count by queue", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]queue.QueueCounts)
	for rows.Next() {
		var name string
		var qc queue.QueueCounts
		if err := rows.Scan(&name, &qc.Pending, &qc.Processing); err != nil {
			return nil, mapError("count by queue: scan", err)
		}
		counts[name] = qc
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("count by queue: iterate", err)
	}
	return counts, nil
}

// CountByStatus returns global per-status counts plus the derived stuck
// count, all from one statement so the figures describe the same instant.
func (s *PostgresJobStore) CountByStatus(ctx context.Context, stuckBefore time.Time) (queue.StatusCounts, error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'processing'),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       COUNT(*) FILTER (WHERE status = 'retrying'),
		       COUNT(*) FILTER (WHERE status = 'processing' AND started_at < $1)
		FROM jobs`

	var counts queue.StatusCounts
	err := s.db.QueryRowContext(ctx, query, stuckBefore).Scan(
		&counts.Pending,
		&counts.Processing,
		&counts.Completed,
		&counts.Failed,
		&counts.Retrying,
		&counts.Stuck,
	)
	if err != nil {
		return queue.StatusCounts{}, mapError("count by status", err)
	}
	return counts, nil
}

// FailedCounts returns failed-job totals and rolling-window counts. The
// window reference is finished_at, falling back to created_at for jobs that
// never reached a worker.
func (s *PostgresJobStore) FailedCounts(ctx context.Context, since24h, since1h time.Time) (queue.FailedCounts, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE COALESCE(finished_at, created_at) >= $1),
		       COUNT(*) FILTER (WHERE COALESCE(finished_at, created_at) >= $2)
		FROM jobs
		WHERE status = 'failed'`

	var counts queue.FailedCounts
	err := s.db.QueryRowContext(ctx, query, since24h, since1h).Scan(
		&counts.Total,
		&counts.Recent24h,
		&counts.Recent1h,
	)
	if err != nil {
		return queue.FailedCounts{}, mapError("failed counts", err)
	}
	return counts, nil
}

// CompletedDurations returns execution durations of jobs completed at or
// after since. Jobs with no recorded start are excluded rather than counted
// as zero-duration runs.
func (s *PostgresJobStore) CompletedDurations(ctx context.Context, since time.Time) ([]time.Duration, error) {
	query := `
		SELECT EXTRACT(EPOCH FROM (finished_at - started_at))
		FROM jobs
		WHERE status = 'completed'
		  AND finished_at >= $1
		  AND started_at IS NOT NULL`

	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, mapError("completed durations", err)
	}
	defer func() { _ = rows.Close() }()

	var durations []time.Duration
	for rows.Next() {
		var seconds float64
		if err := rows.Scan(&seconds); err != nil {
			return nil, mapError("completed durations: scan", err)
		}
		durations = append(durations, time.Duration(seconds*float64(time.Second)))
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("completed durations: iterate", err)
	}
	return durations, nil
}

// RetryCandidates returns failed jobs with attempts remaining whose failure
// time falls at or after cutoff, oldest first.
func (s *PostgresJobStore) RetryCandidates(ctx context.Context, cutoff time.Time, limit int) ([]queue.Job, error) {
	query := `
		SELECT id, queue, status, attempts, max_attempts,
		       created_at, started_at, finished_at, last_error
		FROM jobs
		WHERE status = 'failed'
		  AND attempts < max_attempts
		  AND COALESCE(finished_at, created_at) >= $1
		ORDER BY COALESCE(finished_at, created_at) ASC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, mapError("retry candidates", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []queue.Job
	for rows.Next() {
		var job queue.Job
		var startedAt, finishedAt sql.NullTime
		err := rows.Scan(
			&job.ID, &job.Queue, &job.Status, &job.Attempts, &job.MaxAttempts,
			&job.CreatedAt, &startedAt, &finishedAt, &job.LastError,
		)
		if err != nil {
			return nil, mapError("retry candidates: scan", err)
		}
		if startedAt.Valid {
			t := startedAt.Time
			job.StartedAt = &t
		}
		if finishedAt.Valid {
			t := finishedAt.Time
			job.FinishedAt = &t
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("retry candidates: iterate", err)
	}
	return jobs, nil
}

// DueReminderIDs lists pending jobs on the reminders queue, oldest first.
// These are the task IDs the notification dispatcher publishes.
func (s *PostgresJobStore) DueReminderIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM jobs
		WHERE queue = 'reminders'
		  AND status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, mapError("due reminders", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, mapError("due reminders: scan", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("due reminders: iterate", err)
	}
	return ids, nil
}

// MarkRetrying transitions a failed job to retrying and increments attempts.
// The WHERE clause is the compare-and-swap guard: the row only changes if it
// is still failed with exactly expectedAttempts and attempts remaining, so
// two sweeps racing on the same job produce a single increment.
func (s *PostgresJobStore) MarkRetrying(ctx context.Context, id uuid.UUID, expectedAttempts int) (bool, error) {
	query := `
		UPDATE jobs
		SET status = 'retrying', attempts = attempts + 1
		WHERE id = $1
		  AND status = 'failed'
		  AND attempts = $2
		  AND attempts < max_attempts`

	result, err := s.db.ExecContext(ctx, query, id, expectedAttempts)
	if err != nil {
		return false, mapError("mark retrying", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, mapError("mark retrying: rows affected", err)
	}
	if affected == 0 {
		s.logger.DebugContext(ctx, "retry claim lost", "job_id", id)
		return false, nil
	}
	return true, nil
}

// Requeue hands a retrying job back to the enqueue path, clearing the
// worker-owned fields so it presents as freshly enqueued.
func (s *PostgresJobStore) Requeue(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE jobs
		SET status = 'pending', started_at = NULL, finished_at = NULL, last_error = ''
		WHERE id = $1
		  AND status = 'retrying'`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, mapError("requeue", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, mapError("requeue: rows affected", err)
	}
	return affected > 0, nil
}

// Flush purges terminal job records finished before cutoff. Failed jobs are
// only terminal once attempts are exhausted; retryable failures stay put.
func (s *PostgresJobStore) Flush(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM jobs
		WHERE (status = 'completed' OR (status = 'failed' AND attempts >= max_attempts))
		  AND COALESCE(finished_at, created_at) < $1`

	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, mapError("flush", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, mapError("flush: rows affected", err)
	}
	s.logger.InfoContext(ctx, "flushed terminal jobs", "removed", affected, "cutoff", cutoff)
	return affected, nil
}
