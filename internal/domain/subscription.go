package domain

import "time"

// Chat is a consumer of link update notifications.
type Chat struct {
	ID        int64
	CreatedAt time.Time
}

// ChatLink pairs a chat with a tracked link. Tags and filters belong to
// the pairing, not to the link. Uniqueness on (ChatID, LinkID).
type ChatLink struct {
	ChatID    int64
	LinkID    string
	Tags      []string
	Filters   []string
	CreatedAt time.Time
}
