package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: log.ComponentWorker})
	log.SetDefault(logger)

	logger.Info("Starting fintrack-detector")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	result, err := backend.New(cfg, logger.WithComponent(log.ComponentBackend))
	if err != nil {
		logger.Error("Failed to initialize store", log.FieldError, err)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer result.Cleanup()
	}

	detector := services.NewDetectionService(result.Store)
	scorer, err := services.NewScoreService(result.Store, cfg.ScoreCacheTTL)
	if err != nil {
		logger.Error("Failed to initialize score service", log.FieldError, err)
		os.Exit(1)
	}

	detectWorker := worker.NewDetectWorker(result.Store, detector, scorer, cfg.WorkerConcurrency, cfg.ScoreDayOfMonth)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Detection worker configured",
		"interval", cfg.DetectInterval,
		"concurrency", cfg.WorkerConcurrency,
		"score_day_of_month", cfg.ScoreDayOfMonth)

	ticker := time.NewTicker(cfg.DetectInterval)
	defer ticker.Stop()

	// Run an initial sweep on startup.
	runSweep(ctx, detectWorker, logger, time.Now())

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				runSweep(ctx, detectWorker, logger, now)
			}
		}
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

	logger.Info("Shutting down fintrack-detector")
	cancel()
}

func runSweep(ctx context.Context, w *worker.DetectWorker, logger *log.Logger, now time.Time) {
	count, err := w.RunDetection(ctx)
	if err != nil {
		logger.Error("Detection sweep had failures", log.FieldError, err)
	}
	logger.Info("Detection sweep finished", "subscriptions_created", count)

	if w.ScoreDue(now) {
		updated, err := w.RefreshScores(ctx, now)
		if err != nil {
			logger.Error("Score refresh had failures", log.FieldError, err)
		}
		logger.Info("Score refresh finished", "scores_updated", updated)
	}
}
