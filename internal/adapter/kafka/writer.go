package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/black-ice-advisory/internal/config"
	"github.com/couchcryptid/black-ice-advisory/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes alerts to a Kafka topic.
// It implements pipeline.AlertSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured alert topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaAlertTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in metrics.
func (w *Writer) Name() string { return "kafka" }

// PublishAlerts serializes and publishes alerts in a single WriteMessages
// call. Alerts for the same location share a key so they land on one
// partition in order.
func (w *Writer) PublishAlerts(ctx context.Context, alerts []domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(alerts))
	for i := range alerts {
		msg, err := serializeToMessage(alerts[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d alerts: %w", len(alerts), err)
	}
	w.logger.Debug("alerts published", "topic", w.writer.Topic, "count", len(alerts))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Alert into a Kafka message.
func serializeToMessage(alert domain.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(fmt.Sprintf("location-%d", alert.LocationID)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "alert_id", Value: []byte(alert.ID)},
			{Key: "risk_level", Value: []byte(alert.Level)},
			{Key: "created_at", Value: []byte(alert.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}
