package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/phrazzld/taskward/internal/config"
	"github.com/phrazzld/taskward/internal/platform/logger"
	"github.com/phrazzld/taskward/internal/platform/postgres"
	"github.com/phrazzld/taskward/internal/queue"
)

// app bundles the dependencies a CLI command needs: configuration, logging,
// the database pool, and the queue components built on top of it.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	db           *sql.DB
	store        *postgres.PostgresJobStore
	engine       *queue.HealthEngine
	orchestrator *queue.RetryOrchestrator
}

// newApp loads configuration and wires the component graph. Callers must
// close the returned app.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	db, err := openDatabase(cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	store := postgres.NewPostgresJobStore(db, log)
	policy := queue.HealthPolicy{
		StuckAfter:         cfg.Queue.StuckAfter,
		MaxFailedRecent1h:  cfg.Queue.MaxFailedRecent1h,
		MaxPendingPerQueue: cfg.Queue.MaxPendingPerQueue,
	}
	retryPolicy := queue.RetryPolicy{
		Window:     cfg.Queue.RetryWindow,
		BatchLimit: cfg.Queue.RetryBatchLimit,
	}

	return &app{
		cfg:          cfg,
		logger:       log,
		db:           db,
		store:        store,
		engine:       queue.NewHealthEngine(store, policy, log),
		orchestrator: queue.NewRetryOrchestrator(store, retryPolicy, log),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func openDatabase(url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}
