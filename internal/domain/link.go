package domain

import "time"

// LinkType discriminates tracked resource kinds.
type LinkType string

// Link types.
const (
	LinkTypeGitHub        LinkType = "github"
	LinkTypeStackOverflow LinkType = "stackoverflow"
)

// LinkTypes returns every supported link type. The update fetch registry
// must cover all of them to pass its startup check.
func LinkTypes() []LinkType {
	return []LinkType{LinkTypeGitHub, LinkTypeStackOverflow}
}

// GithubEventType selects which GitHub resource a link tracks.
type GithubEventType string

// GitHub event types.
const (
	GithubEventIssue       GithubEventType = "issue"
	GithubEventPullRequest GithubEventType = "pull_request"
	GithubEventRepository  GithubEventType = "repository"
)

// GithubEventTypes returns every supported GitHub event type.
func GithubEventTypes() []GithubEventType {
	return []GithubEventType{GithubEventIssue, GithubEventPullRequest, GithubEventRepository}
}

// Link is a tracked external resource.
//
// LastCheckedAt and Version are advanced only by the claimer;
// LastModifiedAt only by the dispatch handler.
type Link struct {
	ID             string
	Type           LinkType
	OriginalURL    string
	LastModifiedAt *time.Time
	LastCheckedAt  time.Time
	Version        int64
	CreatedAt      time.Time

	// Type-specific details, populated by the enricher.
	Github        *GithubDetails
	StackOverflow *StackOverflowDetails
}

// GithubDetails holds GitHub-specific link attributes.
// ItemNumber is zero for repository links.
type GithubDetails struct {
	Owner      string
	Repo       string
	ItemNumber int64
	EventType  GithubEventType
}

// StackOverflowDetails holds StackOverflow-specific link attributes.
type StackOverflowDetails struct {
	QuestionID int64
}

// UpdateDetail is the common shape every provider reduces an external
// change to.
type UpdateDetail struct {
	CreatedAt   time.Time
	Description string
}
