// Package kafka provides the Kafka message bus adapter.
package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// Config holds Kafka connection configuration.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Publisher publishes notifications to Kafka. Messages are keyed so all
// updates of one link land on the same partition.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a new Kafka publisher.
func NewPublisher(config Config) *Publisher {
	slog.Info("kafka publisher configured", "brokers", config.Brokers)

	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(config.Brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// Publish writes one message and waits for the broker acknowledgment.
func (p *Publisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Close releases the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
