package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/terror-data-ingest/internal/config"
	"github.com/couchcryptid/terror-data-ingest/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher produces classified events to a Kafka topic for downstream
// consumers. It implements ingest.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured event topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish serializes and produces a single event. The source URL keys the
// message so reprocessed articles land on the same partition.
func (p *Publisher) Publish(ctx context.Context, event domain.TerrorEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a TerrorEvent into a Kafka message.
func serializeToMessage(event domain.TerrorEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize terror event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.SourceURL),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "category", Value: []byte(event.Category)},
			{Key: "publication_date", Value: []byte(event.PublicationDate.Format(time.RFC3339))},
		},
	}, nil
}
