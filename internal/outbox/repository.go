// Package outbox implements the transactional-outbox relay: records
// written alongside link state changes are published to the message bus
// with at-least-once semantics.
package outbox

import (
	"context"

	"github.com/bissquit/linkwatch/internal/domain"
)

// Repository defines the interface for outbox data access.
type Repository interface {
	// FetchPending returns up to limit unprocessed records, oldest first.
	FetchPending(ctx context.Context, limit int) ([]domain.OutboxRecord, error)

	// MarkProcessed sets processed_at on a record. Called only after the
	// bus has acknowledged the publish.
	MarkProcessed(ctx context.Context, id string) error

	// CountPending returns the number of unprocessed records.
	CountPending(ctx context.Context) (int64, error)
}

// Publisher publishes a notification to the message bus. Returning nil
// means the bus acknowledged the message.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}
