package queue

import (
	"errors"
	"fmt"
)

// Common errors surfaced by the health engine, retry orchestrator, and
// job store implementations.
var (
	// ErrStoreUnavailable is returned when the job store cannot be reached.
	// Engine and orchestrator methods fail fast with this error and never
	// return a partial snapshot; retrying is the caller's (scheduler's)
	// responsibility.
	ErrStoreUnavailable = errors.New("job store unavailable")

	// ErrJobNotFound is returned when a referenced job does not exist in
	// the store.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when a status transition is requested
	// from a state that does not permit it.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// IsStoreUnavailable checks whether the error indicates an unreachable
// job store, unwrapping as needed.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// StoreUnavailable wraps err as an ErrStoreUnavailable for the named
// operation, preserving the original error for errors.Is/errors.As.
func StoreUnavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
