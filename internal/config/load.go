package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix namespaces all environment variables, e.g. TASKWARD_SERVER_OPS_PORT.
const envPrefix = "TASKWARD"

// Load configuration from environment variables and optionally a config
// file. Environment variables take precedence over values from config
// files, which take precedence over defaults. Returns a populated Config
// struct or an error if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional taskward.yaml in the working directory or /etc/taskward.
	// A missing file is fine; a malformed one is not.
	v.SetConfigName("taskward")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/taskward")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.ops_port", 9090)
	v.SetDefault("server.log_level", "info")

	// No usable default; registering the key lets AutomaticEnv feed it
	// through Unmarshal, and validation rejects the empty value.
	v.SetDefault("database.url", "")

	v.SetDefault("queue.stuck_after", "30m")
	v.SetDefault("queue.max_failed_recent_1h", 10)
	v.SetDefault("queue.max_pending_per_queue", 1000)
	v.SetDefault("queue.retry_window", "24h")
	v.SetDefault("queue.retry_batch_limit", 100)
	v.SetDefault("queue.retention", "720h")

	v.SetDefault("scheduler.node", defaultNode())
	v.SetDefault("scheduler.resolution", "15s")
	v.SetDefault("scheduler.lease_grace", "30s")
	v.SetDefault("scheduler.reminder_interval", "5m")
	v.SetDefault("scheduler.probe_interval", "1m")
	v.SetDefault("scheduler.report_interval", "5m")
	v.SetDefault("scheduler.retry_interval", "1h")
	v.SetDefault("scheduler.flush_at", "03:30")
	v.SetDefault("scheduler.restart_at", "04:00")
	v.SetDefault("scheduler.task_deadline", "4m")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.reminder_topic", "task-reminders")
	v.SetDefault("kafka.control_topic", "worker-control")
	v.SetDefault("kafka.publish_timeout", "3s")
}

// defaultNode falls back to a pid-derived name when the hostname is
// unavailable so two local processes do not collide in the lease table.
func defaultNode() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return fmt.Sprintf("node-%d", os.Getpid())
	}
	return host
}
