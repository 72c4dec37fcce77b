package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// SweepReminders dispatches every currently-due reminder. Per-reminder
// publish failures are collected rather than aborting the sweep, so one bad
// message cannot starve the rest; the joined error still surfaces the sweep
// as failed to the caller's alerting.
func SweepReminders(ctx context.Context, source ReminderSource, dispatcher ReminderDispatcher, limit int, logger *slog.Logger) (int, error) {
	ids, err := source.DueReminderIDs(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list due reminders: %w", err)
	}

	var errs []error
	dispatched := 0
	for _, id := range ids {
		if err := dispatcher.DispatchReminder(ctx, id); err != nil {
			logger.ErrorContext(ctx, "reminder dispatch failed", "task_id", id, "error", err)
			errs = append(errs, err)
			continue
		}
		dispatched++
	}

	logger.InfoContext(ctx, "reminder sweep finished", "due", len(ids), "dispatched", dispatched)
	return dispatched, errors.Join(errs...)
}
