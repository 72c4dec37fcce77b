package main

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskward/internal/config"
	"github.com/phrazzld/taskward/internal/notify"
	"github.com/phrazzld/taskward/internal/platform/metrics"
	"github.com/phrazzld/taskward/internal/platform/postgres"
	"github.com/phrazzld/taskward/internal/queue"
	"github.com/phrazzld/taskward/internal/scheduler"
)

func testScheduleConfig() *config.Config {
	return &config.Config{
		Queue: config.QueueConfig{
			StuckAfter:         30 * time.Minute,
			MaxFailedRecent1h:  10,
			MaxPendingPerQueue: 1000,
			RetryWindow:        24 * time.Hour,
			RetryBatchLimit:    100,
			Retention:          30 * 24 * time.Hour,
		},
		Scheduler: config.SchedulerConfig{
			Node:             "node-test",
			Resolution:       15 * time.Second,
			LeaseGrace:       30 * time.Second,
			ReminderInterval: 5 * time.Minute,
			ProbeInterval:    time.Minute,
			ReportInterval:   5 * time.Minute,
			RetryInterval:    time.Hour,
			FlushAt:          "03:30",
			RestartAt:        "04:00",
			TaskDeadline:     4 * time.Minute,
		},
		Kafka: config.KafkaConfig{
			Brokers:        []string{"localhost:9092"},
			ReminderTopic:  "task-reminders",
			ControlTopic:   "worker-control",
			PublishTimeout: 3 * time.Second,
		},
	}
}

func buildTestSchedule(t *testing.T, cfg *config.Config) scheduler.Schedule {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := postgres.NewPostgresJobStore(nil, log)
	engine := queue.NewHealthEngine(store, queue.DefaultHealthPolicy(), log)
	orchestrator := queue.NewRetryOrchestrator(store, queue.RetryPolicy{
		Window:     cfg.Queue.RetryWindow,
		BatchLimit: cfg.Queue.RetryBatchLimit,
	}, log)
	publisher := notify.NewKafkaPublisher(cfg.Kafka, cfg.Scheduler.Node, log)
	collector := metrics.NewCollector(prometheus.NewRegistry())

	schedule, err := buildSchedule(cfg, engine, orchestrator, store, publisher, collector, log)
	require.NoError(t, err)
	return schedule
}

func TestBuildScheduleIsValid(t *testing.T) {
	schedule := buildTestSchedule(t, testScheduleConfig())

	require.NoError(t, schedule.Validate())
	assert.Len(t, schedule, 6)
}

func TestBuildScheduleExclusivity(t *testing.T) {
	schedule := buildTestSchedule(t, testScheduleConfig())

	exclusive := map[string]bool{}
	for _, spec := range schedule {
		exclusive[spec.Name] = spec.ClusterExclusive
	}

	// Mutating and externally-visible tasks must be fenced by a lease.
	assert.True(t, exclusive["notification-reminders"])
	assert.True(t, exclusive["queue-health-probe"])
	assert.True(t, exclusive["retry-failed-jobs"])
	assert.True(t, exclusive["flush-terminal-jobs"])

	// Per-node tasks run everywhere.
	assert.False(t, exclusive["queue-health-report"])
	assert.False(t, exclusive["restart-workers"])
}

func TestBuildScheduleDailyTimes(t *testing.T) {
	schedule := buildTestSchedule(t, testScheduleConfig())

	byName := map[string]scheduler.TaskSpec{}
	for _, spec := range schedule {
		byName[spec.Name] = spec
	}

	flush := byName["flush-terminal-jobs"]
	require.NotNil(t, flush.At)
	assert.Equal(t, scheduler.DailyTime{Hour: 3, Minute: 30}, *flush.At)

	restart := byName["restart-workers"]
	require.NotNil(t, restart.At)
	assert.Equal(t, scheduler.DailyTime{Hour: 4, Minute: 0}, *restart.At)
}

func TestBuildScheduleRejectsBadDailyTime(t *testing.T) {
	cfg := testScheduleConfig()
	cfg.Scheduler.FlushAt = "25:99"

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := postgres.NewPostgresJobStore(nil, log)
	engine := queue.NewHealthEngine(store, queue.DefaultHealthPolicy(), log)
	orchestrator := queue.NewRetryOrchestrator(store, queue.RetryPolicy{}, log)
	publisher := notify.NewKafkaPublisher(cfg.Kafka, cfg.Scheduler.Node, log)
	collector := metrics.NewCollector(prometheus.NewRegistry())

	_, err := buildSchedule(cfg, engine, orchestrator, store, publisher, collector, log)
	require.Error(t, err)
}
