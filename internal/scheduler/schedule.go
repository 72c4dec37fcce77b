package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DailyTime is a fixed wall-clock time (UTC) for tasks that run once a day.
type DailyTime struct {
	Hour   int
	Minute int
}

// On returns the tick timestamp for this daily time on the given day.
func (d DailyTime) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), d.Hour, d.Minute, 0, 0, time.UTC)
}

// ParseDailyTime parses an "HH:MM" string into a DailyTime.
func ParseDailyTime(s string) (DailyTime, error) {
	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return DailyTime{}, fmt.Errorf("invalid daily time %q: expected HH:MM", s)
	}
	return DailyTime{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

// TaskSpec describes one scheduled task. Exactly one of Every or At must be
// set: Every runs on a fixed interval aligned to the interval boundary so
// every node computes identical tick timestamps; At runs daily at a fixed
// UTC time.
type TaskSpec struct {
	// Name identifies the task in events, logs, and lease keys
	Name string

	// Every is the fixed run interval (zero when At is used)
	Every time.Duration

	// At is the daily run time (nil when Every is used)
	At *DailyTime

	// ClusterExclusive requires a lease so only one node runs a given tick
	ClusterExclusive bool

	// Deadline bounds a single execution; an execution exceeding it is
	// treated as failed
	Deadline time.Duration

	// Run is the task body
	Run func(ctx context.Context) error
}

// tickAt returns the tick timestamp the task would fire for at the given
// instant, and whether the instant has reached that tick.
func (s TaskSpec) tickAt(now time.Time) (time.Time, bool) {
	if s.At != nil {
		tick := s.At.On(now)
		return tick, !now.Before(tick)
	}
	return now.Truncate(s.Every), true
}

// Schedule is an explicit value object listing the tasks a Coordinator
// runs. There is no process-wide registry; independent coordinators can
// carry independent schedules.
type Schedule []TaskSpec

// Validate checks the schedule for misconfigured tasks.
func (s Schedule) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, spec := range s {
		if spec.Name == "" {
			return errors.New("schedule contains a task with no name")
		}
		if seen[spec.Name] {
			return fmt.Errorf("duplicate task name %q in schedule", spec.Name)
		}
		seen[spec.Name] = true

		if spec.Run == nil {
			return fmt.Errorf("task %q has no run function", spec.Name)
		}
		if (spec.Every > 0) == (spec.At != nil) {
			return fmt.Errorf("task %q must set exactly one of an interval or a daily time", spec.Name)
		}
		if spec.Deadline <= 0 {
			return fmt.Errorf("task %q has no execution deadline", spec.Name)
		}
	}
	return nil
}
