package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bissquit/linkwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProcessor struct {
	batches [][]domain.Link
}

func (p *recordingProcessor) Process(_ context.Context, links []domain.Link) {
	p.batches = append(p.batches, links)
}

func TestTick_ClaimsEnrichesAndProcesses(t *testing.T) {
	repo := &fakeRepo{
		claimResult: []domain.Link{
			{ID: "g1", Type: domain.LinkTypeGitHub},
			{ID: "s1", Type: domain.LinkTypeStackOverflow},
		},
		githubDetails: map[string]domain.GithubDetails{
			"g1": {Owner: "acme", Repo: "widgets"},
		},
		soDetails: map[string]domain.StackOverflowDetails{
			"s1": {QuestionID: 123},
		},
	}
	processor := &recordingProcessor{}

	s := NewScheduler(SchedulerConfig{
		TickInterval:  time.Minute,
		CheckInterval: 5 * time.Minute,
		BatchLimit:    50,
		ClaimTimeout:  time.Second,
	}, repo, NewEnricher(repo), processor)

	before := time.Now()
	s.Tick(context.Background())

	assert.Equal(t, 50, repo.claimLimit)
	// The staleness cutoff is now minus the check interval.
	cutoff := before.Add(-5 * time.Minute)
	assert.WithinDuration(t, cutoff, repo.claimOlderThan, time.Second)

	require.Len(t, processor.batches, 1)
	require.Len(t, processor.batches[0], 2)
	assert.NotNil(t, processor.batches[0][0].Github)
	assert.NotNil(t, processor.batches[0][1].StackOverflow)
}

func TestTick_EmptyClaimSkipsProcessing(t *testing.T) {
	repo := &fakeRepo{}
	processor := &recordingProcessor{}

	s := NewScheduler(SchedulerConfig{
		TickInterval:  time.Minute,
		CheckInterval: 5 * time.Minute,
		BatchLimit:    50,
		ClaimTimeout:  time.Second,
	}, repo, NewEnricher(repo), processor)

	s.Tick(context.Background())

	assert.Empty(t, processor.batches)
	assert.Equal(t, 0, repo.githubLoadCalls)
}

func TestTick_ClaimErrorSkipsProcessing(t *testing.T) {
	repo := &fakeRepo{claimErr: errors.New("db down")}
	processor := &recordingProcessor{}

	s := NewScheduler(SchedulerConfig{
		TickInterval:  time.Minute,
		CheckInterval: 5 * time.Minute,
		BatchLimit:    50,
		ClaimTimeout:  time.Second,
	}, repo, NewEnricher(repo), processor)

	s.Tick(context.Background())

	assert.Empty(t, processor.batches)
}

func TestTick_EnrichErrorSkipsProcessing(t *testing.T) {
	repo := &fakeRepo{
		claimResult: []domain.Link{{ID: "g1", Type: domain.LinkTypeGitHub}},
		detailsErr:  errors.New("db down"),
	}
	processor := &recordingProcessor{}

	s := NewScheduler(SchedulerConfig{
		TickInterval:  time.Minute,
		CheckInterval: 5 * time.Minute,
		BatchLimit:    50,
		ClaimTimeout:  time.Second,
	}, repo, NewEnricher(repo), processor)

	s.Tick(context.Background())

	assert.Empty(t, processor.batches)
}
