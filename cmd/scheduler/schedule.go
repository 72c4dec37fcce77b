package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskward/internal/config"
	"github.com/phrazzld/taskward/internal/notify"
	"github.com/phrazzld/taskward/internal/platform/metrics"
	"github.com/phrazzld/taskward/internal/platform/postgres"
	"github.com/phrazzld/taskward/internal/queue"
	"github.com/phrazzld/taskward/internal/scheduler"
)

// buildSchedule assembles the production task list. Tasks that mutate shared
// state or notify externally are cluster-exclusive; read-only reporting runs
// on every node so each node's logs carry its own view.
func buildSchedule(
	cfg *config.Config,
	engine *queue.HealthEngine,
	orchestrator *queue.RetryOrchestrator,
	store *postgres.PostgresJobStore,
	publisher *notify.KafkaPublisher,
	collector *metrics.Collector,
	log *slog.Logger,
) (scheduler.Schedule, error) {
	flushAt, err := scheduler.ParseDailyTime(cfg.Scheduler.FlushAt)
	if err != nil {
		return nil, err
	}
	restartAt, err := scheduler.ParseDailyTime(cfg.Scheduler.RestartAt)
	if err != nil {
		return nil, err
	}

	deadline := cfg.Scheduler.TaskDeadline
	reportLog := log.With("component", "queue_report")

	return scheduler.Schedule{
		{
			Name:             "notification-reminders",
			Every:            cfg.Scheduler.ReminderInterval,
			ClusterExclusive: true,
			Deadline:         deadline,
			Run: func(ctx context.Context) error {
				_, err := notify.SweepReminders(ctx, store, publisher, cfg.Queue.RetryBatchLimit, log)
				return err
			},
		},
		{
			Name:             "queue-health-probe",
			Every:            cfg.Scheduler.ProbeInterval,
			ClusterExclusive: true,
			Deadline:         deadline,
			Run: func(ctx context.Context) error {
				healthy, err := engine.IsHealthy(ctx)
				if err != nil {
					return err
				}
				if !healthy {
					return fmt.Errorf("queue health check failed")
				}
				return nil
			},
		},
		{
			// Read-only; every node keeps its own report trail and gauges.
			Name:     "queue-health-report",
			Every:    cfg.Scheduler.ReportInterval,
			Deadline: deadline,
			Run: func(ctx context.Context) error {
				snapshot, err := engine.Snapshot(ctx)
				if err != nil {
					return err
				}
				collector.ObserveSnapshot(snapshot)
				reportLog.InfoContext(ctx, "queue health report",
					"healthy", snapshot.Healthy,
					"pending", snapshot.JobStats.Pending,
					"processing", snapshot.JobStats.Processing,
					"stuck", snapshot.JobStats.Stuck,
					"failed_recent_1h", snapshot.FailedJobs.Recent1h,
					"completed_24h", snapshot.Performance.Completed24h)
				return nil
			},
		},
		{
			Name:             "retry-failed-jobs",
			Every:            cfg.Scheduler.RetryInterval,
			ClusterExclusive: true,
			Deadline:         deadline,
			Run: func(ctx context.Context) error {
				result, err := orchestrator.RetryAll(ctx)
				if err != nil {
					return err
				}
				reportLog.InfoContext(ctx, "retry sweep finished",
					"attempted", result.Attempted,
					"requeued", result.Requeued,
					"skipped", result.Skipped,
					"failed", result.Failed)
				return nil
			},
		},
		{
			Name:             "flush-terminal-jobs",
			At:               &flushAt,
			ClusterExclusive: true,
			Deadline:         deadline,
			Run: func(ctx context.Context) error {
				removed, err := store.Flush(ctx, time.Now().Add(-cfg.Queue.Retention))
				if err != nil {
					return err
				}
				reportLog.InfoContext(ctx, "terminal jobs flushed", "removed", removed)
				return nil
			},
		},
		{
			// Local: each node restarts its own co-located workers.
			Name:     "restart-workers",
			At:       &restartAt,
			Deadline: deadline,
			Run: func(ctx context.Context) error {
				return publisher.RestartWorkers(ctx, "scheduled daily restart")
			},
		},
	}, nil
}
