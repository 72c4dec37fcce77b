// Package notify publishes outbound control and notification messages to
// Kafka. The scheduler owns dispatch timing only; message content and
// rendering belong to the downstream notification workers.
package notify
