package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskward/internal/queue"
)

func TestMapErrorNilPassesThrough(t *testing.T) {
	assert.NoError(t, mapError("count by queue", nil))
}

func TestMapErrorNoRowsBecomesNotFound(t *testing.T) {
	err := mapError("load job", sql.ErrNoRows)
	require.Error(t, err)
	assert.ErrorIs(t, err, queue.ErrJobNotFound)
	assert.NotErrorIs(t, err, queue.ErrStoreUnavailable)
}

func TestMapErrorContextExpiryIsUnavailability(t *testing.T) {
	for _, cause := range []error{context.DeadlineExceeded, context.Canceled} {
		err := mapError("count by status", cause)
		assert.True(t, queue.IsStoreUnavailable(err), cause.Error())
		assert.ErrorIs(t, err, cause)
	}
}

func TestMapErrorEmbedsSQLState(t *testing.T) {
	cause := &pgconn.PgError{Code: "08006", Message: "connection failure"}

	err := mapError("acquire lease", cause)
	require.Error(t, err)
	assert.True(t, queue.IsStoreUnavailable(err))
	assert.Contains(t, err.Error(), "sqlstate 08006")
	assert.Contains(t, err.Error(), "acquire lease")

	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))
}

func TestMapErrorGenericDriverFailure(t *testing.T) {
	cause := errors.New("write: broken pipe")
	err := mapError("flush", cause)
	assert.True(t, queue.IsStoreUnavailable(err))
	assert.ErrorIs(t, err, cause)
}
