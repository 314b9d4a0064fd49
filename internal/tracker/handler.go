package tracker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/bissquit/linkwatch/internal/domain"
	"github.com/google/uuid"
)

// UpdateHandler decides per link whether a fetched update is actually new
// and, if so, persists the new state together with an outbox record.
type UpdateHandler struct {
	repo     Repository
	registry *Registry
	topic    string
}

// NewUpdateHandler creates a new UpdateHandler publishing to topic.
func NewUpdateHandler(repo Repository, registry *Registry, topic string) *UpdateHandler {
	return &UpdateHandler{
		repo:     repo,
		registry: registry,
		topic:    topic,
	}
}

// HandleOne fetches the latest update for the link and, when it is
// strictly newer than the known state, commits the new last_modified_at
// and one outbox record atomically. A fetch failure leaves the link
// unchanged; it becomes claimable again after the next interval.
// The first successful fetch for a link always counts as new.
func (h *UpdateHandler) HandleOne(ctx context.Context, link domain.Link) {
	start := time.Now()

	detail, err := h.registry.Fetch(ctx, &link)
	if err != nil {
		slog.Error("fetch update failed",
			"link_id", link.ID,
			"type", link.Type,
			"url", link.OriginalURL,
			"error", err,
		)
		recordFetch(string(link.Type), "error", time.Since(start))
		return
	}
	recordFetch(string(link.Type), "ok", time.Since(start))

	if link.LastModifiedAt != nil && !detail.CreatedAt.After(*link.LastModifiedAt) {
		return
	}

	chatIDs, err := h.repo.GetSubscribedChatIDs(ctx, link.ID)
	if err != nil {
		slog.Error("load subscribers failed", "link_id", link.ID, "error", err)
		return
	}

	update := domain.LinkUpdate{
		LinkID:      link.ID,
		URL:         link.OriginalURL,
		Description: detail.Description,
		ChatIDs:     chatIDs,
	}

	payload, err := json.Marshal(update)
	if err != nil {
		slog.Error("marshal notification failed", "link_id", link.ID, "error", err)
		return
	}

	record := &domain.OutboxRecord{
		ID:      uuid.NewString(),
		Topic:   h.topic,
		Payload: payload,
	}

	if err := h.repo.CommitUpdate(ctx, link.ID, detail.CreatedAt, record); err != nil {
		slog.Error("commit update failed", "link_id", link.ID, "error", err)
		return
	}

	recordUpdateDetected(string(link.Type))

	slog.Info("link update detected",
		"link_id", link.ID,
		"url", link.OriginalURL,
		"modified_at", detail.CreatedAt,
		"subscribers", len(chatIDs),
	)
}
