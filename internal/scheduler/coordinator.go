package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// CoordinatorConfig holds tuning knobs for the dispatch loop.
type CoordinatorConfig struct {
	// Resolution is how often the loop checks for due ticks.
	// If zero, defaults to 15 seconds.
	Resolution time.Duration

	// LeaseGrace is added to a task's deadline to form the lease TTL, so a
	// crashed holder's lease expires shortly after the task could no longer
	// be legitimately running
	LeaseGrace time.Duration
}

// DefaultCoordinatorConfig returns a CoordinatorConfig with reasonable
// defaults.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		Resolution: 15 * time.Second,
		LeaseGrace: 30 * time.Second,
	}
}

// taskState tracks per-task dispatch bookkeeping on this node.
type taskState struct {
	lastTick time.Time
	inFlight bool
}

// Coordinator dispatches a Schedule's tasks on their cadences. One
// coordinator runs per fleet node; cluster-exclusive tasks are arbitrated
// through the LeaseProvider while the in-flight flag serializes ticks of
// the same task on a single node. Dispatched tasks run in their own
// goroutines so a slow task never delays dispatch decisions for others.
type Coordinator struct {
	schedule Schedule
	leases   LeaseProvider
	sink     EventSink
	logger   *slog.Logger
	config   CoordinatorConfig

	mu    sync.Mutex
	state map[string]*taskState

	ctx        context.Context
	cancelFunc context.CancelFunc
	loopDone   chan struct{}
	wg         sync.WaitGroup

	// now is the clock used for tick math; overridable in tests
	now func() time.Time
}

// NewCoordinator creates a Coordinator for the given schedule. The schedule
// is validated up front so misconfiguration fails at construction, not at
// some later tick.
func NewCoordinator(
	schedule Schedule,
	leases LeaseProvider,
	sink EventSink,
	config CoordinatorConfig,
	logger *slog.Logger,
) (*Coordinator, error) {
	if err := schedule.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}
	if config.Resolution == 0 {
		config.Resolution = 15 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		schedule:   schedule,
		leases:     leases,
		sink:       sink,
		logger:     logger.With("component", "coordinator"),
		config:     config,
		state:      make(map[string]*taskState, len(schedule)),
		ctx:        ctx,
		cancelFunc: cancel,
		loopDone:   make(chan struct{}),
		now:        time.Now,
	}, nil
}

// Start begins the dispatch loop. Ticks already elapsed at start time are
// not fired retroactively; the first execution happens on the next boundary.
func (c *Coordinator) Start() {
	now := c.now()

	c.mu.Lock()
	for _, spec := range c.schedule {
		st := &taskState{}
		if tick, due := spec.tickAt(now); due {
			st.lastTick = tick
		}
		c.state[spec.Name] = st
	}
	c.mu.Unlock()

	c.logger.Info("coordinator started",
		"tasks", len(c.schedule),
		"resolution", c.config.Resolution)

	go c.loop()
}

// Stop cancels the dispatch loop and waits for in-flight task executions
// to finish or hit their deadlines.
func (c *Coordinator) Stop() {
	c.cancelFunc()
	<-c.loopDone
	c.wg.Wait()
	c.logger.Info("coordinator stopped")
}

// loop wakes at the configured resolution and dispatches due tasks.
func (c *Coordinator) loop() {
	defer close(c.loopDone)

	ticker := time.NewTicker(c.config.Resolution)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.dispatchDue(c.now())
		}
	}
}

// dispatchDue fires every task whose tick has arrived and was not yet
// handled. Overlap and lease decisions are made here, synchronously, so
// the loop's view of in-flight state is race-free; executions themselves
// run asynchronously.
func (c *Coordinator) dispatchDue(now time.Time) {
	for _, spec := range c.schedule {
		tick, due := spec.tickAt(now)
		if !due {
			continue
		}

		c.mu.Lock()
		st := c.state[spec.Name]
		if !tick.After(st.lastTick) {
			c.mu.Unlock()
			continue
		}
		st.lastTick = tick

		if st.inFlight {
			c.mu.Unlock()
			c.sink.TaskSkipped(spec.Name, "previous run still in flight")
			continue
		}
		st.inFlight = true
		c.mu.Unlock()

		if spec.ClusterExclusive {
			held, err := c.leases.Acquire(c.ctx, spec.Name, tick, spec.Deadline+c.config.LeaseGrace)
			if err != nil {
				c.clearInFlight(spec.Name)
				c.sink.TaskFailed(spec.Name, fmt.Errorf("lease acquisition failed: %w", err))
				continue
			}
			if !held {
				// Another node owns this tick. Expected no-op.
				c.clearInFlight(spec.Name)
				c.sink.TaskSkipped(spec.Name, "lease held by another node")
				continue
			}
		}

		c.wg.Add(1)
		go c.execute(spec, tick)
	}
}

// execute runs one task under its deadline and reports the outcome.
func (c *Coordinator) execute(spec TaskSpec, tick time.Time) {
	defer c.wg.Done()
	defer c.clearInFlight(spec.Name)

	ctx, cancel := context.WithTimeout(c.ctx, spec.Deadline)
	defer cancel()

	start := time.Now()
	err := spec.Run(ctx)
	elapsed := time.Since(start)

	if err != nil {
		c.sink.TaskFailed(spec.Name, err)
		return
	}
	if ctx.Err() != nil {
		// The body returned nil after its context expired; treat the
		// execution as failed so the overrun is not silently lost.
		c.sink.TaskFailed(spec.Name, fmt.Errorf("task exceeded %s deadline", spec.Deadline))
		return
	}

	c.sink.TaskSucceeded(spec.Name, TaskMeta{Tick: tick, Duration: elapsed})
}

func (c *Coordinator) clearInFlight(name string) {
	c.mu.Lock()
	c.state[name].inFlight = false
	c.mu.Unlock()
}
