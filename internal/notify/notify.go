package notify

import (
	"context"

	"github.com/google/uuid"
)

// ReminderDispatcher delivers reminder-due task IDs to the notification
// topic for downstream workers to render and send.
type ReminderDispatcher interface {
	DispatchReminder(ctx context.Context, taskID uuid.UUID) error
}

// WorkerController issues control-plane commands to the worker fleet.
type WorkerController interface {
	// RestartWorkers publishes a rolling-restart request. Workers drain
	// their current job before exiting, so this never interrupts work.
	RestartWorkers(ctx context.Context, reason string) error
}

// ReminderSource lists task IDs whose reminder is currently due.
type ReminderSource interface {
	DueReminderIDs(ctx context.Context, limit int) ([]uuid.UUID, error)
}
