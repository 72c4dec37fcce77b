package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/phrazzld/taskward/internal/scheduler"
)

// PostgresLeaseProvider implements scheduler.LeaseProvider on a shared
// leases table. The (task, tick) primary key plus the conditional upsert
// give exactly-one-holder semantics across coordinator nodes without any
// advisory locking.
type PostgresLeaseProvider struct {
	db     DBTX
	node   string
	logger *slog.Logger
}

var _ scheduler.LeaseProvider = (*PostgresLeaseProvider)(nil)

// NewPostgresLeaseProvider creates a lease provider identifying this process
// as node in the leases table. The node name is diagnostic only; exclusivity
// comes from the primary key.
func NewPostgresLeaseProvider(db DBTX, node string, logger *slog.Logger) *PostgresLeaseProvider {
	return &PostgresLeaseProvider{
		db:     db,
		node:   node,
		logger: logger.With("component", "lease_provider"),
	}
}

// Acquire attempts to take the lease for (task, tick). The insert wins when
// no row exists; the DO UPDATE arm only fires when the existing lease has
// expired, so a live lease held elsewhere leaves zero rows affected.
func (p *PostgresLeaseProvider) Acquire(ctx context.Context, task string, tick time.Time, ttl time.Duration) (bool, error) {
	query := `
		INSERT INTO scheduler_leases (task, tick, node, acquired_at, expires_at)
		VALUES ($1, $2, $3, now(), $4)
		ON CONFLICT (task, tick) DO UPDATE
		SET node = EXCLUDED.node, acquired_at = now(), expires_at = EXCLUDED.expires_at
		WHERE scheduler_leases.expires_at < now()`

	result, err := p.db.ExecContext(ctx, query, task, tick.UTC(), p.node, time.Now().UTC().Add(ttl))
	if err != nil {
		return false, mapError("acquire lease", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, mapError("acquire lease: rows affected", err)
	}
	held := affected > 0
	if held {
		p.logger.DebugContext(ctx, "lease acquired", "task", task, "tick", tick.UTC(), "ttl", ttl)
	}
	return held, nil
}

// ReleaseExpired removes lease rows whose expiry has passed. The coordinator
// never depends on this; it only keeps the table from growing unbounded.
func (p *PostgresLeaseProvider) ReleaseExpired(ctx context.Context) (int64, error) {
	result, err := p.db.ExecContext(ctx, `DELETE FROM scheduler_leases WHERE expires_at < now()`)
	if err != nil {
		return 0, mapError("release expired leases", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, mapError("release expired leases: rows affected", err)
	}
	return affected, nil
}
