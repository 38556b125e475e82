package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"chantier/internal/amqp"
	"chantier/internal/config"
	apphttp "chantier/internal/http"
	applog "chantier/internal/log"
	"chantier/internal/reporting"
	"chantier/internal/rollup"
	"chantier/internal/services"
	"chantier/internal/storage"
	"chantier/internal/storage/memory"
	"chantier/internal/storage/postgres"
	"chantier/internal/storage/sqlite"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var store storage.Store
	switch cfg.DataBackend {
	case "sqlite":
		repo, err := sqlite.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		store = repo
		logger.Info("Initialized sqlite backend", applog.FieldBackend, cfg.DataBackend, "path", cfg.SQLiteDBPath)
	case "postgres":
		pg, err := postgres.NewStore(cfg.PostgresDSN)
		if err != nil {
			logger.Error("Failed to initialize Postgres store", "error", err)
			os.Exit(1)
		}
		store = pg
		logger.Info("Initialized postgres backend", applog.FieldBackend, cfg.DataBackend)
	default:
		store = memory.New()
		logger.Info("Initialized memory backend", applog.FieldBackend, cfg.DataBackend)
	}

	// AMQP is optional for the API: without it the rollup still runs inline,
	// only the ledger-changed events are skipped.
	var events *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events disabled", "error", err)
		} else {
			events = client
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	contracts := services.NewContractService(store, rollup.New(store), events)
	defer func() {
		if err := contracts.Close(); err != nil {
			logger.Error("Close error", "error", err)
		}
	}()
	reports := reporting.NewService(store)

	srv := apphttp.NewServer(":"+cfg.Port, contracts, reports)
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting chantier server", "port", cfg.Port, applog.FieldBackend, cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
