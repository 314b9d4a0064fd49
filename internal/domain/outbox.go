package domain

import "time"

// OutboxRecord is a durable notification written in the same transaction
// as the link state change it describes. A record is pending while
// ProcessedAt is nil; once set it is never reverted.
type OutboxRecord struct {
	ID          string
	Topic       string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// LinkUpdate is the notification payload carried by an outbox record and
// by bus messages. ChatIDs lists every chat subscribed to the link at the
// time the update was detected.
type LinkUpdate struct {
	LinkID      string  `json:"link_id"`
	URL         string  `json:"url"`
	Description string  `json:"description"`
	ChatIDs     []int64 `json:"chat_ids"`
}
