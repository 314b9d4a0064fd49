// Package tracker implements the change-detection pipeline: claiming
// stale links, enriching them with type-specific details, fetching the
// latest update from external providers and recording detected changes
// together with their outbox notifications.
package tracker

import (
	"context"
	"time"

	"github.com/bissquit/linkwatch/internal/domain"
)

// Repository defines the interface for tracker data access.
type Repository interface {
	// ClaimStale atomically selects up to limit links whose last check is
	// older than olderThan, advances their last_checked_at and version,
	// and returns them in post-claim state. Rows locked by a concurrent
	// claim are skipped, not waited on. An empty result is not an error.
	ClaimStale(ctx context.Context, olderThan time.Time, limit int) ([]domain.Link, error)

	// Bulk detail loads, one query per call (N+1 avoidance).
	LoadGithubDetails(ctx context.Context, linkIDs []string) (map[string]domain.GithubDetails, error)
	LoadStackOverflowDetails(ctx context.Context, linkIDs []string) (map[string]domain.StackOverflowDetails, error)

	// GetSubscribedChatIDs returns every chat id subscribed to the link.
	GetSubscribedChatIDs(ctx context.Context, linkID string) ([]int64, error)

	// CommitUpdate persists the link's new last_modified_at and inserts
	// the outbox record in a single transaction. Partial application is
	// never observable.
	CommitUpdate(ctx context.Context, linkID string, modifiedAt time.Time, record *domain.OutboxRecord) error
}
