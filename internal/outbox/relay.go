package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/bissquit/linkwatch/internal/domain"
	"github.com/bissquit/linkwatch/internal/pkg/ctxlog"
	"github.com/robfig/cron/v3"
)

// RelayConfig contains relay configuration.
type RelayConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Relay periodically publishes pending outbox records to the message bus
// and marks them processed. A record is marked processed only after the
// publish is acknowledged; any failure leaves it pending for the next
// run. The relay runs on its own timer, decoupled from the detection
// tick.
type Relay struct {
	config    RelayConfig
	repo      Repository
	publisher Publisher
	cron      *cron.Cron
}

// NewRelay creates a new outbox relay.
func NewRelay(config RelayConfig, repo Repository, publisher Publisher) *Relay {
	return &Relay{
		config:    config,
		repo:      repo,
		publisher: publisher,
		cron:      cron.New(),
	}
}

// Start begins relaying on the configured interval.
func (r *Relay) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc("@every "+r.config.Interval.String(), func() {
		r.PublishPending(ctx)
	})
	if err != nil {
		return err
	}

	ctxlog.FromContext(ctx).Info("starting outbox relay",
		"interval", r.config.Interval,
		"batch_size", r.config.BatchSize,
	)
	r.cron.Start()
	return nil
}

// Stop stops relaying and waits for the running pass to finish.
func (r *Relay) Stop() {
	<-r.cron.Stop().Done()
	slog.Info("outbox relay stopped")
}

// PublishPending publishes one batch of pending records.
func (r *Relay) PublishPending(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)

	records, err := r.repo.FetchPending(ctx, r.config.BatchSize)
	if err != nil {
		logger.Error("fetch pending outbox records failed", "error", err)
		return
	}

	if len(records) == 0 {
		return
	}

	logger.Debug("relaying outbox records", "count", len(records))

	for i := range records {
		r.publishOne(ctx, &records[i])
	}
}

func (r *Relay) publishOne(ctx context.Context, record *domain.OutboxRecord) {
	// The partition key is the link id so updates of one link keep their
	// relative order on the bus.
	logger := ctxlog.FromContext(ctx)

	var update domain.LinkUpdate
	if err := json.Unmarshal(record.Payload, &update); err != nil {
		logger.Error("outbox record payload does not decode; record stays pending",
			"record_id", record.ID,
			"error", err,
		)
		recordPoisonPayload()
		return
	}

	if err := r.publisher.Publish(ctx, record.Topic, []byte(update.LinkID), record.Payload); err != nil {
		logger.Warn("publish outbox record failed",
			"record_id", record.ID,
			"topic", record.Topic,
			"error", err,
		)
		recordPublish("error")
		return
	}

	if err := r.repo.MarkProcessed(ctx, record.ID); err != nil {
		// The message is on the bus but the record stays pending; the
		// next run republishes it. Consumers tolerate duplicates.
		logger.Error("mark outbox record processed failed", "record_id", record.ID, "error", err)
		return
	}

	recordPublish("ok")
}
