// Package kafka publishes audit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/collision-data-api/internal/config"
	"github.com/couchcryptid/collision-data-api/internal/domain"
	"github.com/couchcryptid/collision-data-api/internal/observability"
)

// Publish outcomes recorded in metrics.
const (
	outcomePublished = "published"
	outcomeError     = "error"
)

// Writer produces audit events to the configured audit topic. Writes are
// asynchronous: Publish returns once the event is queued and delivery
// results are reported through metrics and logs.
type Writer struct {
	writer  *kafkago.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWriter creates an audit producer for cfg.KafkaAuditTopic.
func NewWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	w := &Writer{logger: logger, metrics: metrics}
	w.writer = &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAuditTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion:   w.complete,
	}
	return w
}

// Publish queues one audit event.
func (w *Writer) Publish(ctx context.Context, event domain.AuditEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		w.metrics.AuditEvents.WithLabelValues(outcomeError).Inc()
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		w.metrics.AuditEvents.WithLabelValues(outcomeError).Inc()
		return fmt.Errorf("publish audit event %s: %w", event.ID, err)
	}
	return nil
}

// Close flushes pending events and closes the producer.
func (w *Writer) Close() error {
	return w.writer.Close()
}

func (w *Writer) complete(messages []kafkago.Message, err error) {
	if err != nil {
		w.metrics.AuditEvents.WithLabelValues(outcomeError).Add(float64(len(messages)))
		w.logger.Warn("audit events not delivered", "count", len(messages), "error", err)
		return
	}
	w.metrics.AuditEvents.WithLabelValues(outcomePublished).Add(float64(len(messages)))
}

// serializeToMessage marshals an AuditEvent into a Kafka message keyed by its ID.
func serializeToMessage(event domain.AuditEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize audit event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(event.Kind)},
			{Key: "occurred_at", Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
