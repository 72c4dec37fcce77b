package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	kgo "github.com/segmentio/kafka-go"

	"github.com/phrazzld/taskward/internal/config"
)

// messageWriter is the slice of kafka.Writer the publisher uses; tests
// substitute a recording fake.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// KafkaPublisher implements ReminderDispatcher and WorkerController over
// two Kafka topics: one for reminder notifications, one for worker control.
type KafkaPublisher struct {
	reminders messageWriter
	control   messageWriter
	node      string
	timeout   time.Duration
	logger    *slog.Logger
}

var (
	_ ReminderDispatcher = (*KafkaPublisher)(nil)
	_ WorkerController   = (*KafkaPublisher)(nil)
)

// NewKafkaPublisher creates a publisher from Kafka configuration. RequireOne
// acks keep publishes fast; the notification path tolerates rare loss far
// better than a stalled scheduler tick.
func NewKafkaPublisher(cfg config.KafkaConfig, node string, logger *slog.Logger) *KafkaPublisher {
	newWriter := func(topic string) *kgo.Writer {
		return &kgo.Writer{
			Addr:         kgo.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kgo.LeastBytes{},
			RequiredAcks: kgo.RequireOne,
		}
	}

	return &KafkaPublisher{
		reminders: newWriter(cfg.ReminderTopic),
		control:   newWriter(cfg.ControlTopic),
		node:      node,
		timeout:   cfg.PublishTimeout,
		logger:    logger.With("component", "kafka_publisher"),
	}
}

// Close releases both writers.
func (p *KafkaPublisher) Close() error {
	rErr := p.reminders.Close()
	cErr := p.control.Close()
	if rErr != nil {
		return rErr
	}
	return cErr
}

type reminderMessage struct {
	TaskID string `json:"task_id"`
}

type controlMessage struct {
	Action      string    `json:"action"`
	Reason      string    `json:"reason"`
	Node        string    `json:"node"`
	RequestedAt time.Time `json:"requested_at"`
}

// DispatchReminder publishes one reminder-due task ID, keyed by the ID so
// messages for the same task stay ordered within a partition.
func (p *KafkaPublisher) DispatchReminder(ctx context.Context, taskID uuid.UUID) error {
	if err := p.publishJSON(ctx, p.reminders, taskID.String(), reminderMessage{TaskID: taskID.String()}); err != nil {
		return fmt.Errorf("dispatch reminder %s: %w", taskID, err)
	}
	return nil
}

// RestartWorkers publishes a rolling-restart control message.
func (p *KafkaPublisher) RestartWorkers(ctx context.Context, reason string) error {
	msg := controlMessage{
		Action:      "restart",
		Reason:      reason,
		Node:        p.node,
		RequestedAt: time.Now().UTC(),
	}
	if err := p.publishJSON(ctx, p.control, "restart", msg); err != nil {
		return fmt.Errorf("restart workers: %w", err)
	}
	p.logger.InfoContext(ctx, "worker restart requested", "reason", reason)
	return nil
}

// publishJSON writes one keyed JSON message under a short timeout so a down
// broker cannot hang a scheduler tick.
func (p *KafkaPublisher) publishJSON(ctx context.Context, w messageWriter, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return w.WriteMessages(cctx, kgo.Message{
		Key:   []byte(key),
		Value: b,
		Time:  time.Now(),
	})
}
