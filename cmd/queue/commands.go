package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/taskward/internal/notify"
	"github.com/phrazzld/taskward/internal/report"
)

// errUnhealthy carries the check-mode verdict to main without any output.
var errUnhealthy = errors.New("queue unhealthy")

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "queue",
		Short:         "Operational CLI for the job queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newMonitorCommand())
	root.AddCommand(newRetryFailedCommand())
	root.AddCommand(newFlushCommand())
	root.AddCommand(newRestartWorkersCommand())
	root.AddCommand(newMigrateCommand())

	return root
}

func newMonitorCommand() *cobra.Command {
	var verbose, jsonOut, check bool

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Report queue health and statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd.Context(), report.ModeFromFlags(check, jsonOut, verbose))
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "include performance metrics")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit a machine-parseable JSON snapshot")
	cmd.Flags().BoolVar(&check, "check", false, "no output; exit 0 when healthy, 1 otherwise")

	return cmd
}

func runMonitor(ctx context.Context, mode report.ReportMode) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if mode == report.ModeCheck {
		healthy, err := a.engine.IsHealthy(ctx)
		if err != nil {
			return err
		}
		if !healthy {
			return errUnhealthy
		}
		return nil
	}

	snapshot, err := a.engine.Snapshot(ctx)
	if err != nil {
		_ = report.WriteError(os.Stdout, mode, err)
		return err
	}
	return report.WriteSnapshot(os.Stdout, mode, snapshot)
}

func newRetryFailedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "retry-failed",
		Short: "Requeue recently failed jobs that have attempts remaining",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			// Per-job outcomes are informational; the sweep itself succeeding
			// is what the exit code reports.
			result, err := a.orchestrator.RetryAll(cmd.Context())
			if err != nil {
				return err
			}
			return report.WriteBatchResult(os.Stdout, result)
		},
	}
}

func newFlushCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Purge terminal job records past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			cutoff := time.Now().Add(-a.cfg.Queue.Retention)
			removed, err := a.store.Flush(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d terminal job records\n", removed)
			return nil
		},
	}
}

func newRestartWorkersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restart-workers",
		Short: "Publish a rolling-restart request to the worker fleet",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			publisher := notify.NewKafkaPublisher(a.cfg.Kafka, a.cfg.Scheduler.Node, a.logger)
			defer func() { _ = publisher.Close() }()

			if err := publisher.RestartWorkers(cmd.Context(), "manual restart via CLI"); err != nil {
				return err
			}
			fmt.Println("worker restart requested")
			return nil
		},
	}
}
