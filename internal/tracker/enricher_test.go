package tracker

import (
	"context"
	"testing"

	"github.com/bissquit/linkwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrich_OneBulkLoadPerType(t *testing.T) {
	repo := &fakeRepo{
		githubDetails: map[string]domain.GithubDetails{
			"g1": {Owner: "acme", Repo: "widgets", ItemNumber: 42, EventType: domain.GithubEventIssue},
			"g2": {Owner: "acme", Repo: "gears", ItemNumber: 7, EventType: domain.GithubEventPullRequest},
		},
		soDetails: map[string]domain.StackOverflowDetails{
			"s1": {QuestionID: 79012345},
		},
	}
	enricher := NewEnricher(repo)

	links := []domain.Link{
		{ID: "g1", Type: domain.LinkTypeGitHub},
		{ID: "s1", Type: domain.LinkTypeStackOverflow},
		{ID: "g2", Type: domain.LinkTypeGitHub},
	}

	enriched, err := enricher.Enrich(context.Background(), links)
	require.NoError(t, err)
	require.Len(t, enriched, 3)

	assert.Equal(t, 1, repo.githubLoadCalls)
	assert.Equal(t, 1, repo.soLoadCalls)

	require.NotNil(t, enriched[0].Github)
	assert.Equal(t, "widgets", enriched[0].Github.Repo)
	require.NotNil(t, enriched[1].StackOverflow)
	assert.Equal(t, int64(79012345), enriched[1].StackOverflow.QuestionID)
	require.NotNil(t, enriched[2].Github)
	assert.Equal(t, domain.GithubEventPullRequest, enriched[2].Github.EventType)
}

func TestEnrich_SkipsQueryForAbsentType(t *testing.T) {
	repo := &fakeRepo{
		githubDetails: map[string]domain.GithubDetails{
			"g1": {Owner: "acme", Repo: "widgets"},
		},
	}
	enricher := NewEnricher(repo)

	_, err := enricher.Enrich(context.Background(), []domain.Link{
		{ID: "g1", Type: domain.LinkTypeGitHub},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.githubLoadCalls)
	assert.Equal(t, 0, repo.soLoadCalls)
}

func TestEnrich_DropsLinksWithoutDetailsRow(t *testing.T) {
	repo := &fakeRepo{
		githubDetails: map[string]domain.GithubDetails{
			"g1": {Owner: "acme", Repo: "widgets"},
		},
	}
	enricher := NewEnricher(repo)

	enriched, err := enricher.Enrich(context.Background(), []domain.Link{
		{ID: "g1", Type: domain.LinkTypeGitHub},
		{ID: "orphan", Type: domain.LinkTypeGitHub},
	})
	require.NoError(t, err)

	require.Len(t, enriched, 1)
	assert.Equal(t, "g1", enriched[0].ID)
}

func TestEnrich_EmptyBatch(t *testing.T) {
	repo := &fakeRepo{}
	enricher := NewEnricher(repo)

	enriched, err := enricher.Enrich(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, enriched)
	assert.Equal(t, 0, repo.githubLoadCalls)
	assert.Equal(t, 0, repo.soLoadCalls)
}
