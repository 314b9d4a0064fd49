package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/bissquit/linkwatch/internal/pkg/ctxlog"
	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one bus message. Returning nil acknowledges
// the message; returning an error keeps it unacknowledged and blocks
// the partition until a retry succeeds.
type MessageHandler func(ctx context.Context, value []byte) error

// messageReader is the part of kafka.Reader the consume loop depends on.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	initialRetryBackoff = time.Second
	maxRetryBackoff     = 30 * time.Second
)

// Consumer reads notifications from Kafka within a consumer group and
// commits offsets only after the handler succeeds (at-least-once).
type Consumer struct {
	reader       messageReader
	handler      MessageHandler
	retryBackoff time.Duration
	done         chan struct{}
	stop         chan struct{}
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(config Config, handler MessageHandler) *Consumer {
	slog.Info("kafka consumer configured",
		"brokers", config.Brokers,
		"topic", config.Topic,
		"group_id", config.GroupID,
	)

	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: config.Brokers,
			Topic:   config.Topic,
			GroupID: config.GroupID,
		}),
		handler:      handler,
		retryBackoff: initialRetryBackoff,
		done:         make(chan struct{}),
		stop:         make(chan struct{}),
	}
}

// Start launches the consume loop.
func (c *Consumer) Start(ctx context.Context) {
	go c.run(ctx)
}

// Stop closes the reader and waits for the consume loop to exit.
func (c *Consumer) Stop() error {
	close(c.stop)
	err := c.reader.Close()
	<-c.done
	slog.Info("kafka consumer stopped")
	return err
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)

	logger := ctxlog.FromContext(ctx)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			// io.EOF means the reader was closed.
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			logger.Error("fetch message failed", "error", err)
			return
		}

		if !c.handleWithRetry(ctx, logger, msg) {
			return
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Error("commit message failed",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// handleWithRetry blocks the partition until the handler accepts the
// message. Committed offsets are a per-partition watermark: committing
// any later message would implicitly acknowledge this one, so skipping
// ahead on failure silently drops it. Payloads that can never succeed
// are the handler's call to accept and discard.
// Returns false when stopped or cancelled before the handler succeeded.
func (c *Consumer) handleWithRetry(ctx context.Context, logger *slog.Logger, msg kafka.Message) bool {
	backoff := c.retryBackoff

	for {
		err := c.handler(ctx, msg.Value)
		if err == nil {
			return true
		}

		logger.Error("handle message failed, retrying",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"backoff", backoff,
			"error", err,
		)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-c.stop:
			timer.Stop()
			return false
		case <-ctx.Done():
			timer.Stop()
			return false
		}

		backoff *= 2
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
}
