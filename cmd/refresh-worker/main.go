package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cpidash/internal/amqp"
	"cpidash/internal/config"
	applog "cpidash/internal/log"
	"cpidash/internal/services"
	"cpidash/internal/statcan"
	"cpidash/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: applog.ComponentWorker})
	applog.SetDefault(logger)

	logger.Info("Starting refresh-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	store, err := storage.New(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open dataset cache", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	loader := statcan.New(statcan.WithURLs(cfg.StatsCanCSVURL, cfg.StatsCanZipURL))
	dataset := services.NewDatasetService(store, loader, cfg.CacheMaxAge)

	// AMQP client for notifying dashboard instances about new data.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, refreshes will not be announced", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled, refreshing the SQLite cache only")
	}

	processor := services.NewRefreshProcessor(dataset, publisher, services.RefreshProcessorConfig{
		Interval:   cfg.RefreshInterval,
		RunOnStart: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Refresh processor configured",
		"interval", cfg.RefreshInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start refresh processor", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := processor.Stop(shutdownCtx); err != nil {
		logger.Warn("Refresh processor did not stop cleanly", "error", err)
	} else {
		logger.Info("Refresh-worker shutdown complete")
	}
}
