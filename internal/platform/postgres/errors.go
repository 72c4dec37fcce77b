package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/taskward/internal/queue"
)

// mapError maps a database error to the domain error taxonomy. Connection
// and availability failures become ErrStoreUnavailable so callers can fail
// fast without inspecting driver internals; sql.ErrNoRows becomes
// ErrJobNotFound. Used by all store operations for consistent handling.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", queue.ErrJobNotFound, op)
	}

	// Context expiry while talking to the store reads as unavailability to
	// the caller: the snapshot could not be taken.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return queue.StoreUnavailable(op, err)
	}

	// Surface the SQLSTATE so operators can tell a connection failure from
	// a constraint or syntax problem without raising the log level.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return queue.StoreUnavailable(fmt.Sprintf("%s (sqlstate %s)", op, pgErr.Code), err)
	}

	return queue.StoreUnavailable(op, err)
}
