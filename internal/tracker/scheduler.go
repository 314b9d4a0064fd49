package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/bissquit/linkwatch/internal/pkg/ctxlog"
	"github.com/robfig/cron/v3"
)

// SchedulerConfig contains scheduler configuration.
type SchedulerConfig struct {
	// TickInterval is how often a claim/enrich/process cycle runs.
	TickInterval time.Duration
	// CheckInterval is how stale a link must be before it is claimed.
	CheckInterval time.Duration
	// BatchLimit caps how many links one tick claims.
	BatchLimit int
	// ClaimTimeout bounds the claim database call.
	ClaimTimeout time.Duration
}

// Scheduler drives the detection pipeline on a periodic tick:
// claim stale links, enrich them, hand the batch to the processor.
//
// Multiple scheduler instances may run concurrently; the claim's
// row-lock-and-skip semantics are the sole mutual-exclusion point.
// A tick whose processing outlives the interval is safe: the claimed
// rows are already marked fresh and will not be claimed again.
type Scheduler struct {
	config    SchedulerConfig
	repo      Repository
	enricher  *Enricher
	processor Processor
	cron      *cron.Cron
}

// NewScheduler creates a new Scheduler.
func NewScheduler(config SchedulerConfig, repo Repository, enricher *Enricher, processor Processor) *Scheduler {
	return &Scheduler{
		config:    config,
		repo:      repo,
		enricher:  enricher,
		processor: processor,
		cron:      cron.New(),
	}
}

// Start begins ticking. The given context bounds all pipeline work.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc("@every "+s.config.TickInterval.String(), func() {
		s.Tick(ctx)
	})
	if err != nil {
		return err
	}

	ctxlog.FromContext(ctx).Info("starting tracker scheduler",
		"tick_interval", s.config.TickInterval,
		"check_interval", s.config.CheckInterval,
		"batch_limit", s.config.BatchLimit,
	)
	s.cron.Start()
	return nil
}

// Stop stops ticking and waits for the running tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("tracker scheduler stopped")
}

// Tick runs one claim/enrich/process cycle.
func (s *Scheduler) Tick(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)

	claimCtx, cancel := context.WithTimeout(ctx, s.config.ClaimTimeout)
	links, err := s.repo.ClaimStale(claimCtx, time.Now().Add(-s.config.CheckInterval), s.config.BatchLimit)
	cancel()
	if err != nil {
		logger.Error("claim stale links failed", "error", err)
		return
	}

	if len(links) == 0 {
		return
	}

	recordClaimed(len(links))
	logger.Debug("claimed stale links", "count", len(links))

	links, err = s.enricher.Enrich(ctx, links)
	if err != nil {
		logger.Error("enrich links failed", "error", err)
		return
	}

	s.processor.Process(ctx, links)
}
