package scheduler

import (
	"context"
	"sync"
	"time"
)

// LeaseProvider grants cluster-wide exclusivity for one tick of one task.
// Production deployments back it with a shared store reachable from every
// coordinator node; tests use the in-memory implementation below.
type LeaseProvider interface {
	// Acquire attempts to take the lease for the given task name and tick
	// timestamp. It returns true when this caller holds the lease, false
	// when another holder already does. Losing the race is the expected
	// no-op path, not an error. The lease expires after ttl so a crashed
	// holder frees the next tick.
	Acquire(ctx context.Context, task string, tick time.Time, ttl time.Duration) (bool, error)
}

// MemoryLeaseProvider is an in-process LeaseProvider. It is shared between
// coordinators in tests to exercise cluster-exclusivity without standing up
// a cluster.
type MemoryLeaseProvider struct {
	mu      sync.Mutex
	expires map[string]time.Time

	// now is the clock used for expiry; overridable in tests
	now func() time.Time
}

// NewMemoryLeaseProvider creates an empty MemoryLeaseProvider.
func NewMemoryLeaseProvider() *MemoryLeaseProvider {
	return &MemoryLeaseProvider{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Acquire implements LeaseProvider.
func (p *MemoryLeaseProvider) Acquire(ctx context.Context, task string, tick time.Time, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := task + "@" + tick.UTC().Format(time.RFC3339)
	now := p.now()

	if expiry, held := p.expires[key]; held && now.Before(expiry) {
		return false, nil
	}

	p.expires[key] = now.Add(ttl)
	return true, nil
}
