package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	kgo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWriter struct {
	messages []kgo.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kgo.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func newTestPublisher() (*KafkaPublisher, *fakeWriter, *fakeWriter) {
	reminders := &fakeWriter{}
	control := &fakeWriter{}
	p := &KafkaPublisher{
		reminders: reminders,
		control:   control,
		node:      "node-a",
		timeout:   time.Second,
		logger:    testLogger(),
	}
	return p, reminders, control
}

func TestDispatchReminderPublishesKeyedJSON(t *testing.T) {
	p, reminders, control := newTestPublisher()
	taskID := uuid.New()

	require.NoError(t, p.DispatchReminder(context.Background(), taskID))

	require.Len(t, reminders.messages, 1)
	assert.Empty(t, control.messages)

	msg := reminders.messages[0]
	assert.Equal(t, taskID.String(), string(msg.Key))

	var decoded reminderMessage
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, taskID.String(), decoded.TaskID)
}

func TestDispatchReminderWrapsWriterError(t *testing.T) {
	p, reminders, _ := newTestPublisher()
	reminders.err = errors.New("broker down")
	taskID := uuid.New()

	err := p.DispatchReminder(context.Background(), taskID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), taskID.String())
	assert.Contains(t, err.Error(), "broker down")
}

func TestRestartWorkersPublishesControlMessage(t *testing.T) {
	p, reminders, control := newTestPublisher()

	require.NoError(t, p.RestartWorkers(context.Background(), "scheduled daily restart"))

	require.Len(t, control.messages, 1)
	assert.Empty(t, reminders.messages)

	var decoded controlMessage
	require.NoError(t, json.Unmarshal(control.messages[0].Value, &decoded))
	assert.Equal(t, "restart", decoded.Action)
	assert.Equal(t, "scheduled daily restart", decoded.Reason)
	assert.Equal(t, "node-a", decoded.Node)
	assert.False(t, decoded.RequestedAt.IsZero())
}

func TestCloseClosesBothWriters(t *testing.T) {
	p, reminders, control := newTestPublisher()

	require.NoError(t, p.Close())
	assert.True(t, reminders.closed)
	assert.True(t, control.closed)
}
