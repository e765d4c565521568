package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	ballotengine "eligo/contexts/election-operations/ballot-engine"
	"eligo/contexts/election-operations/ballot-engine/adapters/memory"
	postgresadapter "eligo/contexts/election-operations/ballot-engine/adapters/postgres"
	workerapp "eligo/contexts/election-operations/ballot-engine/application/workers"
	"eligo/internal/platform/config"
	"eligo/internal/platform/db"
	"eligo/internal/platform/httpserver"
	"eligo/internal/platform/messaging"
)

// Package bootstrap is the composition root. The ballot store is constructed
// exactly once here and passed by reference into the services; nothing else
// in the process owns mutable election state.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres       *db.Postgres
	outboxRelay    workerapp.OutboxRelay
	tallyRefresher workerapp.TallyRefresher
	refreshEnabled bool
	pollInterval   time.Duration
	logger         *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	cache := memory.NewResultsCache(cfg.ResultsCacheTTL)
	module := ballotengine.NewModule(ballotengine.Dependencies{
		Store:      repo,
		Elections:  repo,
		Sessions:   repo,
		Cache:      cache,
		Outbox:     repo,
		Clock:      postgresadapter.SystemClock{},
		IDGen:      postgresadapter.UUIDGenerator{},
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	})

	server := httpserver.New(module, repo, postgresadapter.SystemClock{}, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	cache := memory.NewResultsCache(cfg.ResultsCacheTTL)
	module := ballotengine.NewModule(ballotengine.Dependencies{
		Store:      repo,
		Elections:  repo,
		Sessions:   repo,
		Cache:      cache,
		Outbox:     repo,
		Clock:      postgresadapter.SystemClock{},
		IDGen:      postgresadapter.UUIDGenerator{},
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	})

	return &WorkerApp{
		postgres: pg,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: kafka,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		tallyRefresher: workerapp.TallyRefresher{
			Subscriber:    kafka,
			Tallies:       module.Handler.Tallies,
			ConsumerGroup: "ballot-engine-tally-cg",
			Logger:        logger,
		},
		refreshEnabled: cfg.EnableTallyRefresher,
		pollInterval:   cfg.WorkerPollInterval,
		logger:         logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if w.refreshEnabled {
		if err := w.tallyRefresher.Start(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.outboxRelay.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
