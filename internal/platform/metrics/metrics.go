// Package metrics exposes Prometheus instrumentation for the scheduler and
// queue health engine, plus the operational HTTP endpoints that serve it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/phrazzld/taskward/internal/queue"
	"github.com/phrazzld/taskward/internal/scheduler"
)

// Collector gathers scheduler task outcomes and queue health gauges. It
// implements scheduler.EventSink so it can sit in the coordinator's fan-out
// next to the log sink.
type Collector struct {
	taskRuns     *prometheus.CounterVec
	taskFailures *prometheus.CounterVec
	taskSkips    *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec

	queueHealthy   prometheus.Gauge
	jobsPending    prometheus.Gauge
	jobsProcessing prometheus.Gauge
	jobsStuck      prometheus.Gauge
	failedRecent1h prometheus.Gauge
}

var _ scheduler.EventSink = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
// Passing a dedicated registry keeps tests from tripping over duplicate
// global registration.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		taskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_task_runs_total",
			Help: "Total number of successful task executions",
		}, []string{"task"}),
		taskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_task_failures_total",
			Help: "Total number of failed task executions",
		}, []string{"task"}),
		taskSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_task_skips_total",
			Help: "Total number of skipped ticks",
		}, []string{"task", "reason"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduler_task_duration_seconds",
			Help:    "Task execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),
		queueHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_healthy",
			Help: "Whether the queue subsystem passed its last health evaluation (1 or 0)",
		}),
		jobsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_jobs_pending",
			Help: "Current number of pending jobs across all queues",
		}),
		jobsProcessing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_jobs_processing",
			Help: "Current number of processing jobs across all queues",
		}),
		jobsStuck: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_jobs_stuck",
			Help: "Current number of jobs processing past the stuck threshold",
		}),
		failedRecent1h: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_jobs_failed_recent_1h",
			Help: "Jobs that failed within the last hour",
		}),
	}

	reg.MustRegister(
		c.taskRuns,
		c.taskFailures,
		c.taskSkips,
		c.taskDuration,
		c.queueHealthy,
		c.jobsPending,
		c.jobsProcessing,
		c.jobsStuck,
		c.failedRecent1h,
	)

	return c
}

// TaskSucceeded implements scheduler.EventSink.
func (c *Collector) TaskSucceeded(task string, meta scheduler.TaskMeta) {
	c.taskRuns.WithLabelValues(task).Inc()
	c.taskDuration.WithLabelValues(task).Observe(meta.Duration.Seconds())
}

// TaskFailed implements scheduler.EventSink.
func (c *Collector) TaskFailed(task string, err error) {
	c.taskFailures.WithLabelValues(task).Inc()
}

// TaskSkipped implements scheduler.EventSink.
func (c *Collector) TaskSkipped(task string, reason string) {
	c.taskSkips.WithLabelValues(task, reason).Inc()
}

// ObserveSnapshot updates the queue health gauges from a fresh snapshot.
func (c *Collector) ObserveSnapshot(snapshot *queue.HealthSnapshot) {
	if snapshot.Healthy {
		c.queueHealthy.Set(1)
	} else {
		c.queueHealthy.Set(0)
	}
	c.jobsPending.Set(float64(snapshot.JobStats.Pending))
	c.jobsProcessing.Set(float64(snapshot.JobStats.Processing))
	c.jobsStuck.Set(float64(snapshot.JobStats.Stuck))
	c.failedRecent1h.Set(float64(snapshot.FailedJobs.Recent1h))
}
