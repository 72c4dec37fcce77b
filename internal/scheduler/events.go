package scheduler

import (
	"log/slog"
	"time"
)

// TaskMeta carries observability details about one task execution.
type TaskMeta struct {
	// Tick is the scheduled timestamp the execution belongs to
	Tick time.Time

	// Duration is how long the execution took
	Duration time.Duration
}

// EventSink receives structured task outcome events. The coordinator emits
// through this interface only; callers decide where success, failure, and
// skip events go (report log, alert channel, metrics).
type EventSink interface {
	// TaskSucceeded is emitted after a task execution completes without error.
	TaskSucceeded(task string, meta TaskMeta)

	// TaskFailed is emitted when a task execution returns an error or
	// exceeds its deadline. Implementations route this to alerting.
	TaskFailed(task string, err error)

	// TaskSkipped is emitted when a tick is observed but not executed:
	// the previous run is still in flight, or another node holds the lease.
	TaskSkipped(task string, reason string)
}

// LogEventSink writes task outcomes to structured loggers: successes and
// skips to the report logger, failures to the alert logger.
type LogEventSink struct {
	report *slog.Logger
	alert  *slog.Logger
}

// NewLogEventSink creates a LogEventSink over the given loggers.
func NewLogEventSink(report, alert *slog.Logger) *LogEventSink {
	return &LogEventSink{
		report: report.With("component", "scheduler"),
		alert:  alert.With("component", "scheduler", "channel", "alert"),
	}
}

// TaskSucceeded implements EventSink.
func (s *LogEventSink) TaskSucceeded(task string, meta TaskMeta) {
	s.report.Info("task succeeded",
		"task", task,
		"tick", meta.Tick,
		"duration_ms", meta.Duration.Milliseconds())
}

// TaskFailed implements EventSink.
func (s *LogEventSink) TaskFailed(task string, err error) {
	s.alert.Error("task failed",
		"task", task,
		"error", err)
}

// TaskSkipped implements EventSink.
func (s *LogEventSink) TaskSkipped(task string, reason string) {
	s.report.Debug("task skipped",
		"task", task,
		"reason", reason)
}

// MultiSink fans events out to several sinks in order.
type MultiSink []EventSink

// TaskSucceeded implements EventSink.
func (m MultiSink) TaskSucceeded(task string, meta TaskMeta) {
	for _, sink := range m {
		sink.TaskSucceeded(task, meta)
	}
}

// TaskFailed implements EventSink.
func (m MultiSink) TaskFailed(task string, err error) {
	for _, sink := range m {
		sink.TaskFailed(task, err)
	}
}

// TaskSkipped implements EventSink.
func (m MultiSink) TaskSkipped(task string, reason string) {
	for _, sink := range m {
		sink.TaskSkipped(task, reason)
	}
}
