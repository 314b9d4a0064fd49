package tracker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bissquit/linkwatch/internal/domain"
)

// Enricher bulk-loads type-specific details for claimed links.
type Enricher struct {
	repo Repository
}

// NewEnricher creates a new Enricher.
func NewEnricher(repo Repository) *Enricher {
	return &Enricher{repo: repo}
}

// Enrich populates subtype fields on the given links, issuing exactly one
// bulk query per link type present in the batch. Links of a type whose
// details are missing from the store are dropped from the result (the
// link row exists but its child row does not), logged as data corruption.
func (e *Enricher) Enrich(ctx context.Context, links []domain.Link) ([]domain.Link, error) {
	byType := make(map[domain.LinkType][]string)
	for _, l := range links {
		byType[l.Type] = append(byType[l.Type], l.ID)
	}

	githubDetails := make(map[string]domain.GithubDetails)
	soDetails := make(map[string]domain.StackOverflowDetails)

	for linkType, ids := range byType {
		switch linkType {
		case domain.LinkTypeGitHub:
			details, err := e.repo.LoadGithubDetails(ctx, ids)
			if err != nil {
				return nil, fmt.Errorf("load github details: %w", err)
			}
			githubDetails = details
		case domain.LinkTypeStackOverflow:
			details, err := e.repo.LoadStackOverflowDetails(ctx, ids)
			if err != nil {
				return nil, fmt.Errorf("load stackoverflow details: %w", err)
			}
			soDetails = details
		default:
			slog.Warn("unknown link type in batch", "type", linkType, "count", len(ids))
		}
	}

	enriched := make([]domain.Link, 0, len(links))
	for _, l := range links {
		switch l.Type {
		case domain.LinkTypeGitHub:
			d, ok := githubDetails[l.ID]
			if !ok {
				slog.Error("github link has no details row", "link_id", l.ID)
				continue
			}
			l.Github = &d
		case domain.LinkTypeStackOverflow:
			d, ok := soDetails[l.ID]
			if !ok {
				slog.Error("stackoverflow link has no details row", "link_id", l.ID)
				continue
			}
			l.StackOverflow = &d
		default:
			continue
		}
		enriched = append(enriched, l)
	}

	return enriched, nil
}
