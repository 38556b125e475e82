package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"chantier/internal/amqp"
	"chantier/internal/config"
	"chantier/internal/core"
	applog "chantier/internal/log"
	"chantier/internal/rollup"
	"chantier/internal/storage"
	"chantier/internal/storage/postgres"
	"chantier/internal/storage/sqlite"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentWorker)
	applog.SetDefault(logger)

	logger.Info("Starting chantier-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// The worker reconciles the same database the API writes to, so the
	// in-process memory backend cannot serve it.
	var store storage.Store
	switch cfg.DataBackend {
	case "sqlite":
		repo, err := sqlite.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		store = repo
	case "postgres":
		pg, err := postgres.NewStore(cfg.PostgresDSN)
		if err != nil {
			logger.Error("Failed to initialize Postgres store", "error", err)
			os.Exit(1)
		}
		store = pg
	default:
		logger.Error("Worker requires a shared backend", applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	rollupSvc := rollup.New(store)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		err := amqpClient.ConsumeLedgerChanged(ctx, func(msg *amqp.LedgerChangedMessage) error {
			_, err := rollupSvc.Run(ctx, msg.ProjectID)
			if errors.Is(err, core.ErrNotFound) {
				// The project vanished between publish and consume; the
				// message has nothing left to reconcile.
				logger.Warn("Skipping rollup for missing project", applog.FieldProjectID, msg.ProjectID)
				return nil
			}
			return err
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
		cancel()
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()

	// Give the consumer time to finish the in-flight delivery
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
