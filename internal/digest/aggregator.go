// Package digest accumulates link update notifications into per-chat
// digests for later combined delivery by an external flush job.
package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bissquit/linkwatch/internal/domain"
)

// Store holds per-chat digest entries in arrival order with bounded
// retention.
type Store interface {
	// Append adds a message to the chat's digest with the next score.
	Append(ctx context.Context, chatID int64, message string) error

	// Drain atomically returns all entries in arrival order and clears
	// the digest.
	Drain(ctx context.Context, chatID int64) ([]string, error)
}

// Aggregator consumes bus notifications and fans them out to per-chat
// digests. The bus message is acknowledged only after every append
// succeeded; re-delivery therefore duplicates digest entries, which the
// flush consumer tolerates.
type Aggregator struct {
	store Store
}

// NewAggregator creates a new Aggregator.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// HandleNotification processes one bus message. A payload that does not
// decode is dropped after logging: it can never succeed and would block
// the partition forever.
func (a *Aggregator) HandleNotification(ctx context.Context, value []byte) error {
	var update domain.LinkUpdate
	if err := json.Unmarshal(value, &update); err != nil {
		slog.Error("notification payload does not decode, dropping", "error", err)
		recordDropped()
		return nil
	}

	message := formatEntry(&update)

	for _, chatID := range update.ChatIDs {
		if err := a.store.Append(ctx, chatID, message); err != nil {
			return fmt.Errorf("append digest entry for chat %d: %w", chatID, err)
		}
		recordAppended()
	}

	return nil
}

// Drain returns and clears the digest for one chat. Invoked by the
// external periodic flush collaborator.
func (a *Aggregator) Drain(ctx context.Context, chatID int64) ([]string, error) {
	entries, err := a.store.Drain(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("drain digest for chat %d: %w", chatID, err)
	}
	return entries, nil
}

func formatEntry(update *domain.LinkUpdate) string {
	return fmt.Sprintf("%s\n%s", update.Description, update.URL)
}
