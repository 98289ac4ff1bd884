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
	"golang.org/x/sync/errgroup"

	"cpidash/internal/amqp"
	"cpidash/internal/config"
	apphttp "cpidash/internal/http"
	applog "cpidash/internal/log"
	"cpidash/internal/services"
	"cpidash/internal/statcan"
	"cpidash/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: applog.ComponentApp})
	applog.SetDefault(logger)

	logger.Info("Starting cpidash server")

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

	// AMQP is optional: when a refresh worker runs elsewhere, consume its
	// notifications and reload from the shared SQLite cache.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without refresh notifications", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized", "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled, dataset refreshes happen in-process only")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Warm the dataset before accepting traffic. A failure is not fatal:
	// the first request retries and /readyz reports the state.
	warmCtx, warmCancel := context.WithTimeout(ctx, 2*time.Minute)
	if t, err := dataset.Table(warmCtx); err != nil {
		logger.Warn("Dataset warm-up failed", "error", err)
	} else {
		logger.Info("Dataset ready", "observations", len(t), "categories", len(t.Categories()))
	}
	warmCancel()

	srv := apphttp.NewServer(":"+cfg.Port, dataset)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if amqpClient != nil {
		g.Go(func() error {
			return amqpClient.ConsumeRefresh(gctx, func(msg *amqp.RefreshMessage) error {
				logger.Info("Refresh notification received",
					"observations", msg.Observations, "categories", msg.Categories)
				return dataset.ReloadFromStore(gctx)
			})
		})
	}

	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-gctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
