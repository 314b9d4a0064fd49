// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bissquit/linkwatch/internal/bus/kafka"
	"github.com/bissquit/linkwatch/internal/config"
	"github.com/bissquit/linkwatch/internal/digest"
	digestredis "github.com/bissquit/linkwatch/internal/digest/redis"
	"github.com/bissquit/linkwatch/internal/outbox"
	outboxpostgres "github.com/bissquit/linkwatch/internal/outbox/postgres"
	"github.com/bissquit/linkwatch/internal/pkg/ctxlog"
	"github.com/bissquit/linkwatch/internal/pkg/metrics"
	"github.com/bissquit/linkwatch/internal/pkg/postgres"
	"github.com/bissquit/linkwatch/internal/tracker"
	"github.com/bissquit/linkwatch/internal/tracker/github"
	trackerpostgres "github.com/bissquit/linkwatch/internal/tracker/postgres"
	"github.com/bissquit/linkwatch/internal/tracker/stackoverflow"
	"github.com/bissquit/linkwatch/internal/version"
	"github.com/bissquit/linkwatch/migrations"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config      *config.Config
	logger      *slog.Logger
	db          *pgxpool.Pool
	digestStore *digestredis.Store
	publisher   *kafka.Publisher
	consumer    *kafka.Consumer
	scheduler   *tracker.Scheduler
	relay       *outbox.Relay
	server      *http.Server

	pipelineCtx    context.Context
	pipelineCancel context.CancelFunc
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	// Resources acquired so far, released in reverse on any later
	// init failure.
	var cleanup cleanupStack

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	cleanup.push(db.Close)

	if err := migrations.Up(cfg.Database.URL); err != nil {
		cleanup.run()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	digestStore, err := digestredis.NewStore(connectCtx, digestredis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.DigestTTL,
	})
	if err != nil {
		cleanup.run()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	cleanup.push(func() { _ = digestStore.Close() })

	githubClient, err := github.NewClient(github.Config{
		BaseURL:   cfg.Github.BaseURL,
		Token:     cfg.Github.Token,
		Timeout:   cfg.Github.Timeout,
		RateLimit: cfg.Github.RateLimit,
	})
	if err != nil {
		cleanup.run()
		return nil, fmt.Errorf("create github client: %w", err)
	}

	soClient, err := stackoverflow.NewClient(stackoverflow.Config{
		BaseURL:     cfg.StackOverflow.BaseURL,
		Key:         cfg.StackOverflow.Key,
		AccessToken: cfg.StackOverflow.AccessToken,
		Timeout:     cfg.StackOverflow.Timeout,
		RateLimit:   cfg.StackOverflow.RateLimit,
	})
	if err != nil {
		cleanup.run()
		return nil, fmt.Errorf("create stackoverflow client: %w", err)
	}

	// Provider coverage is validated here, at startup.
	registry, err := tracker.NewRegistry(githubClient, soClient)
	if err != nil {
		cleanup.run()
		return nil, fmt.Errorf("build update registry: %w", err)
	}

	trackerRepo := trackerpostgres.NewRepository(db)
	handler := tracker.NewUpdateHandler(trackerRepo, registry, cfg.Kafka.Topic)

	var processor tracker.Processor
	if cfg.Scheduler.Strategy == "parallel" {
		processor = tracker.NewParallelProcessor(handler, cfg.Scheduler.Workers)
	} else {
		processor = tracker.NewSequentialProcessor(handler)
	}

	scheduler := tracker.NewScheduler(tracker.SchedulerConfig{
		TickInterval:  cfg.Scheduler.TickInterval,
		CheckInterval: cfg.Scheduler.CheckInterval,
		BatchLimit:    cfg.Scheduler.BatchLimit,
		ClaimTimeout:  cfg.Scheduler.ClaimTimeout,
	}, trackerRepo, tracker.NewEnricher(trackerRepo), processor)

	busConfig := kafka.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	}
	publisher := kafka.NewPublisher(busConfig)

	outboxRepo := outboxpostgres.NewRepository(db)
	relay := outbox.NewRelay(outbox.RelayConfig{
		Interval:  cfg.Relay.Interval,
		BatchSize: cfg.Relay.BatchSize,
	}, outboxRepo, publisher)

	aggregator := digest.NewAggregator(digestStore)
	consumer := kafka.NewConsumer(busConfig, aggregator.HandleNotification)

	pipelineCtx, pipelineCancel := context.WithCancel(ctxlog.WithLogger(context.Background(), logger))

	app := &App{
		config:         cfg,
		logger:         logger,
		db:             db,
		digestStore:    digestStore,
		publisher:      publisher,
		consumer:       consumer,
		scheduler:      scheduler,
		relay:          relay,
		pipelineCtx:    pipelineCtx,
		pipelineCancel: pipelineCancel,
	}

	router := chi.NewRouter()
	router.Get("/healthz", app.healthzHandler)
	router.Get("/readyz", app.readyzHandler)
	router.Get("/version", app.versionHandler)
	router.Handle("/metrics", promhttp.Handler())

	registration := tracker.NewRegistrationHandler(trackerRepo)
	router.Route("/api/v1", registration.RegisterRoutes)

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the pipeline and the operational HTTP server, blocking until
// the server exits.
func (a *App) Run() error {
	if err := a.scheduler.Start(ctxlog.With(a.pipelineCtx, "component", "scheduler")); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := a.relay.Start(ctxlog.With(a.pipelineCtx, "component", "relay")); err != nil {
		return fmt.Errorf("start relay: %w", err)
	}
	a.consumer.Start(ctxlog.With(a.pipelineCtx, "component", "consumer"))

	go a.collectPoolMetrics(a.pipelineCtx)

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully stops the pipeline and the HTTP server.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	a.scheduler.Stop()
	a.relay.Stop()

	var errs []error

	if err := a.consumer.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop consumer: %w", err))
	}
	a.pipelineCancel()

	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown server: %w", err))
	}
	if err := a.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if err := a.digestStore.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close digest store: %w", err))
	}

	a.db.Close()

	return errors.Join(errs...)
}

// collectPoolMetrics samples DB pool and outbox depth gauges.
func (a *App) collectPoolMetrics(ctx context.Context) {
	repo := outboxpostgres.NewRepository(a.db)

	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)

			pending, err := repo.CountPending(ctx)
			if err != nil {
				slog.Error("failed to count pending outbox records", "error", err)
				continue
			}
			outbox.RecordPendingRecords(pending)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Database unavailable"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
