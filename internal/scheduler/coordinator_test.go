package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// recordingSink captures emitted events for assertions.
type recordingSink struct {
	mu        sync.Mutex
	succeeded []string
	failed    map[string]error
	skipped   map[string]string
	done      chan string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		failed:  make(map[string]error),
		skipped: make(map[string]string),
		done:    make(chan string, 16),
	}
}

func (s *recordingSink) TaskSucceeded(task string, meta TaskMeta) {
	s.mu.Lock()
	s.succeeded = append(s.succeeded, task)
	s.mu.Unlock()
	s.done <- task
}

func (s *recordingSink) TaskFailed(task string, err error) {
	s.mu.Lock()
	s.failed[task] = err
	s.mu.Unlock()
	s.done <- task
}

func (s *recordingSink) TaskSkipped(task string, reason string) {
	s.mu.Lock()
	s.skipped[task] = reason
	s.mu.Unlock()
}

func (s *recordingSink) successCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.succeeded)
}

func (s *recordingSink) waitForOutcome(t *testing.T) string {
	t.Helper()
	select {
	case task := <-s.done:
		return task
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a task outcome")
		return ""
	}
}

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestCoordinator(
	t *testing.T,
	schedule Schedule,
	leases LeaseProvider,
	sink EventSink,
) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(schedule, leases, sink, DefaultCoordinatorConfig(), setupTestLogger())
	require.NoError(t, err)
	c.now = func() time.Time { return baseTime }
	c.Start()
	t.Cleanup(c.Stop)
	return c
}

func minuteTask(name string, run func(ctx context.Context) error) TaskSpec {
	return TaskSpec{
		Name:     name,
		Every:    time.Minute,
		Deadline: 10 * time.Second,
		Run:      run,
	}
}

func TestScheduleValidate(t *testing.T) {
	valid := minuteTask("probe", func(ctx context.Context) error { return nil })
	assert.NoError(t, Schedule{valid}.Validate())

	missingRun := valid
	missingRun.Run = nil
	assert.Error(t, Schedule{missingRun}.Validate())

	bothCadences := valid
	bothCadences.At = &DailyTime{Hour: 3}
	assert.Error(t, Schedule{bothCadences}.Validate())

	noDeadline := valid
	noDeadline.Deadline = 0
	assert.Error(t, Schedule{noDeadline}.Validate())

	assert.Error(t, Schedule{valid, valid}.Validate(), "duplicate names rejected")
}

func TestDispatchRunsDueTask(t *testing.T) {
	ran := make(chan struct{}, 1)
	schedule := Schedule{minuteTask("probe", func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	})}

	sink := newRecordingSink()
	c := newTestCoordinator(t, schedule, NewMemoryLeaseProvider(), sink)

	// The start tick is considered already handled; the next minute fires.
	c.dispatchDue(baseTime.Add(time.Minute))

	assert.Equal(t, "probe", sink.waitForOutcome(t))
	<-ran
	assert.Equal(t, 1, sink.successCount())
}

func TestDispatchFiresTickOnlyOnce(t *testing.T) {
	schedule := Schedule{minuteTask("probe", func(ctx context.Context) error { return nil })}
	sink := newRecordingSink()
	c := newTestCoordinator(t, schedule, NewMemoryLeaseProvider(), sink)

	tick := baseTime.Add(time.Minute)
	c.dispatchDue(tick)
	sink.waitForOutcome(t)

	// Re-observing the same tick is a no-op, not a second run.
	c.dispatchDue(tick)
	c.dispatchDue(tick.Add(10 * time.Second))

	assert.Equal(t, 1, sink.successCount())
}

func TestOverlapGuardSkipsSlowTask(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	schedule := Schedule{minuteTask("slow", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})}

	sink := newRecordingSink()
	c := newTestCoordinator(t, schedule, NewMemoryLeaseProvider(), sink)

	c.dispatchDue(baseTime.Add(time.Minute))
	<-started

	// Next tick arrives while the first run is still in flight.
	c.dispatchDue(baseTime.Add(2 * time.Minute))

	sink.mu.Lock()
	reason := sink.skipped["slow"]
	sink.mu.Unlock()
	assert.Equal(t, "previous run still in flight", reason)

	close(release)
	sink.waitForOutcome(t)
	assert.Equal(t, 1, sink.successCount())
}

func TestClusterExclusiveTaskRunsOnExactlyOneNode(t *testing.T) {
	leases := NewMemoryLeaseProvider()

	var runs int32
	var mu sync.Mutex
	spec := minuteTask("reminders", func(ctx context.Context) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	})
	spec.ClusterExclusive = true

	const nodes = 3
	sinks := make([]*recordingSink, nodes)
	coordinators := make([]*Coordinator, nodes)
	for i := 0; i < nodes; i++ {
		sinks[i] = newRecordingSink()
		coordinators[i] = newTestCoordinator(t, Schedule{spec}, leases, sinks[i])
	}

	// All nodes observe the same tick.
	tick := baseTime.Add(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < nodes; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			coordinators[i].dispatchDue(tick)
		}(i)
	}
	wg.Wait()

	// Skips are recorded synchronously during dispatch; the single winner
	// emits its success asynchronously, so wait on the node with no skip.
	ranOn := 0
	skippedOn := 0
	for i := 0; i < nodes; i++ {
		sinks[i].mu.Lock()
		_, skipped := sinks[i].skipped["reminders"]
		sinks[i].mu.Unlock()

		if skipped {
			skippedOn++
			continue
		}
		sinks[i].waitForOutcome(t)
		require.Equal(t, 1, sinks[i].successCount())
		ranOn++
	}

	assert.Equal(t, 1, ranOn, "exactly one node must execute the tick")
	assert.Equal(t, nodes-1, skippedOn, "all other nodes observe and no-op")

	mu.Lock()
	assert.EqualValues(t, 1, runs)
	mu.Unlock()
}

func TestFailedTaskRoutedToFailureEvent(t *testing.T) {
	boom := errors.New("store unavailable")
	schedule := Schedule{minuteTask("retry-failed-jobs", func(ctx context.Context) error {
		return boom
	})}

	sink := newRecordingSink()
	c := newTestCoordinator(t, schedule, NewMemoryLeaseProvider(), sink)

	c.dispatchDue(baseTime.Add(time.Minute))
	sink.waitForOutcome(t)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.ErrorIs(t, sink.failed["retry-failed-jobs"], boom)
	assert.Empty(t, sink.succeeded, "a failing task never emits success")
}

func TestDeadlineOverrunIsFailure(t *testing.T) {
	spec := TaskSpec{
		Name:     "slow-report",
		Every:    time.Minute,
		Deadline: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return nil // body swallows the cancellation
		},
	}

	sink := newRecordingSink()
	c := newTestCoordinator(t, Schedule{spec}, NewMemoryLeaseProvider(), sink)

	c.dispatchDue(baseTime.Add(time.Minute))
	sink.waitForOutcome(t)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Contains(t, sink.failed, "slow-report")
	assert.Contains(t, sink.failed["slow-report"].Error(), "deadline")
}

func TestDailyTaskFiresAtConfiguredTime(t *testing.T) {
	spec := TaskSpec{
		Name:     "flush-terminal-jobs",
		At:       &DailyTime{Hour: 13, Minute: 30},
		Deadline: 10 * time.Second,
		Run:      func(ctx context.Context) error { return nil },
	}

	sink := newRecordingSink()
	c := newTestCoordinator(t, Schedule{spec}, NewMemoryLeaseProvider(), sink)

	// Before the daily time: nothing fires.
	c.dispatchDue(baseTime.Add(time.Hour))
	assert.Zero(t, sink.successCount())

	// At the daily time: fires once, and only once for the day.
	c.dispatchDue(time.Date(2025, 6, 1, 13, 30, 5, 0, time.UTC))
	sink.waitForOutcome(t)
	c.dispatchDue(time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC))

	assert.Equal(t, 1, sink.successCount())
}

func TestLeaseExpiryFreesNextTick(t *testing.T) {
	provider := NewMemoryLeaseProvider()
	clock := baseTime
	provider.now = func() time.Time { return clock }

	ctx := context.Background()
	held, err := provider.Acquire(ctx, "probe", baseTime, time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	// Same tick while the lease lives: refused.
	held, err = provider.Acquire(ctx, "probe", baseTime, time.Minute)
	require.NoError(t, err)
	assert.False(t, held)

	// After expiry the same tick key can be reacquired by a recovering node.
	clock = baseTime.Add(2 * time.Minute)
	held, err = provider.Acquire(ctx, "probe", baseTime, time.Minute)
	require.NoError(t, err)
	assert.True(t, held)

	// A different tick is always contested fresh.
	held, err = provider.Acquire(ctx, "probe", baseTime.Add(time.Minute), time.Minute)
	require.NoError(t, err)
	assert.True(t, held)
}
