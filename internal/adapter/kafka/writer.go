// Package kafka publishes alerts to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/geohazard-service/internal/domain"
)

// AlertWriter produces one message per alert. It implements alert.Sink.
type AlertWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewAlertWriter creates a Kafka producer for the alert topic. Messages are
// keyed by alert ID so redeliveries land on the same partition.
func NewAlertWriter(brokers []string, topic string, logger *slog.Logger) *AlertWriter {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return &AlertWriter{writer: w, logger: logger}
}

// Publish writes a to the topic.
func (w *AlertWriter) Publish(ctx context.Context, a domain.Alert) error {
	msg, err := serializeAlert(a)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write alert %s: %w", a.ID, err)
	}
	w.logger.Debug("alert published", "sink", "kafka", "topic", w.writer.Topic, "id", a.ID)
	return nil
}

func (w *AlertWriter) Close() error {
	return w.writer.Close()
}

// serializeAlert marshals an Alert into a Kafka message.
func serializeAlert(a domain.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(a.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "alert_type", Value: []byte(a.Type)},
			{Key: "severity", Value: []byte(a.Severity)},
			{Key: "created_at", Value: []byte(a.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}
