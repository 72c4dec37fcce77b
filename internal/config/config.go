package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Queue     QueueConfig     `mapstructure:"queue" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Kafka     KafkaConfig     `mapstructure:"kafka" validate:"required"`
}

// ServerConfig contains the process-level settings shared by both binaries.
type ServerConfig struct {
	// OpsPort serves /metrics and /healthz
	OpsPort  int    `mapstructure:"ops_port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// QueueConfig holds the health policy and retry policy knobs.
type QueueConfig struct {
	// StuckAfter is how long a job may process before it counts as stuck
	StuckAfter time.Duration `mapstructure:"stuck_after" validate:"required,gt=0"`

	// MaxFailedRecent1h is the failure ceiling for the rolling 1h window
	MaxFailedRecent1h int `mapstructure:"max_failed_recent_1h" validate:"gte=0"`

	// MaxPendingPerQueue is the per-queue backlog ceiling
	MaxPendingPerQueue int `mapstructure:"max_pending_per_queue" validate:"required,gt=0"`

	// RetryWindow bounds how far back a sweep picks up failed jobs
	RetryWindow time.Duration `mapstructure:"retry_window" validate:"required,gt=0"`

	// RetryBatchLimit caps jobs touched per sweep
	RetryBatchLimit int `mapstructure:"retry_batch_limit" validate:"required,gt=0"`

	// Retention is how long terminal job records are kept before flush
	Retention time.Duration `mapstructure:"retention" validate:"required,gt=0"`
}

// SchedulerConfig holds task cadences and coordination settings.
type SchedulerConfig struct {
	// Node identifies this process in the lease table; diagnostic only
	Node string `mapstructure:"node" validate:"required"`

	// Resolution is how often the coordinator checks for due ticks
	Resolution time.Duration `mapstructure:"resolution" validate:"required,gt=0"`

	// LeaseGrace pads the lease TTL beyond the task deadline
	LeaseGrace time.Duration `mapstructure:"lease_grace" validate:"required,gt=0"`

	ReminderInterval time.Duration `mapstructure:"reminder_interval" validate:"required,gt=0"`
	ProbeInterval    time.Duration `mapstructure:"probe_interval" validate:"required,gt=0"`
	ReportInterval   time.Duration `mapstructure:"report_interval" validate:"required,gt=0"`
	RetryInterval    time.Duration `mapstructure:"retry_interval" validate:"required,gt=0"`

	// FlushAt and RestartAt are daily wall-clock times in HH:MM form
	FlushAt   string `mapstructure:"flush_at" validate:"required,len=5"`
	RestartAt string `mapstructure:"restart_at" validate:"required,len=5"`

	// TaskDeadline bounds a single task execution
	TaskDeadline time.Duration `mapstructure:"task_deadline" validate:"required,gt=0"`
}

// KafkaConfig contains settings for the notification and control topics.
type KafkaConfig struct {
	Brokers        []string      `mapstructure:"brokers" validate:"required,min=1"`
	ReminderTopic  string        `mapstructure:"reminder_topic" validate:"required"`
	ControlTopic   string        `mapstructure:"control_topic" validate:"required"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout" validate:"required,gt=0"`
}
