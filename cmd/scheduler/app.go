package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/phrazzld/taskward/internal/config"
	"github.com/phrazzld/taskward/internal/notify"
	"github.com/phrazzld/taskward/internal/platform/logger"
	"github.com/phrazzld/taskward/internal/platform/metrics"
	"github.com/phrazzld/taskward/internal/platform/postgres"
	"github.com/phrazzld/taskward/internal/queue"
	"github.com/phrazzld/taskward/internal/scheduler"
)

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	store := postgres.NewPostgresJobStore(db, log)
	engine := queue.NewHealthEngine(store, queue.HealthPolicy{
		StuckAfter:         cfg.Queue.StuckAfter,
		MaxFailedRecent1h:  cfg.Queue.MaxFailedRecent1h,
		MaxPendingPerQueue: cfg.Queue.MaxPendingPerQueue,
	}, log)
	orchestrator := queue.NewRetryOrchestrator(store, queue.RetryPolicy{
		Window:     cfg.Queue.RetryWindow,
		BatchLimit: cfg.Queue.RetryBatchLimit,
	}, log)

	publisher := notify.NewKafkaPublisher(cfg.Kafka, cfg.Scheduler.Node, log)
	defer func() { _ = publisher.Close() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewCollector(registry)

	opsServer := metrics.NewOpsServer(cfg.Server.OpsPort, engine, registry, log)
	opsErr := make(chan error, 1)
	go func() { opsErr <- opsServer.Start() }()

	sink := scheduler.MultiSink{
		scheduler.NewLogEventSink(log, log),
		collector,
	}

	schedule, err := buildSchedule(cfg, engine, orchestrator, store, publisher, collector, log)
	if err != nil {
		return fmt.Errorf("build schedule: %w", err)
	}

	leases := postgres.NewPostgresLeaseProvider(db, cfg.Scheduler.Node, log)

	coordinator, err := scheduler.NewCoordinator(schedule, leases, sink, scheduler.CoordinatorConfig{
		Resolution: cfg.Scheduler.Resolution,
		LeaseGrace: cfg.Scheduler.LeaseGrace,
	}, log)
	if err != nil {
		return fmt.Errorf("create coordinator: %w", err)
	}

	coordinator.Start()
	log.Info("scheduler started",
		"node", cfg.Scheduler.Node,
		"tasks", len(schedule),
		"resolution", cfg.Scheduler.Resolution)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info("shutdown signal received", "signal", sig.String())
	case err := <-opsErr:
		if err != nil {
			log.Error("ops server failed", "error", err)
		}
	}

	coordinator.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("ops server shutdown failed", "error", err)
	}

	log.Info("scheduler stopped")
	return nil
}
