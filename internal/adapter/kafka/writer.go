package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/config"
	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes rain alerts to a Kafka topic.
// It implements pipeline.AlertSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured alert topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes the alert and writes it keyed by area code, so alerts
// for one area stay ordered on a single partition.
func (w *Writer) Publish(ctx context.Context, event domain.AlertEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish alert %s: %w", event.ID, err)
	}
	w.logger.Debug("alert published", "id", event.ID, "topic", w.writer.Topic, "area_code", int(event.AreaCode))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an AlertEvent into a Kafka message.
func serializeToMessage(event domain.AlertEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.Itoa(int(event.AreaCode))),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "level", Value: []byte(event.Level.String())},
			{Key: "trigger_at", Value: []byte(event.TriggerAt.Format(time.RFC3339))},
		},
	}, nil
}
