package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"channel-integration-engine/internal/bookinglifecycle"
	"channel-integration-engine/internal/channel"
	"channel-integration-engine/internal/config"
	"channel-integration-engine/internal/database"
	"channel-integration-engine/internal/health"
	"channel-integration-engine/internal/outbox"
	"channel-integration-engine/internal/pricing"
	"channel-integration-engine/internal/ratestate"
	"channel-integration-engine/internal/scheduler"
	"channel-integration-engine/internal/server"
	"channel-integration-engine/internal/webhook"
)

func gracefulShutdown(apiServer *http.Server, workers context.CancelFunc, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")
	stop()

	// Stop background workers first so they don't claim new work mid-shutdown.
	workers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown with error: %v", err)
	}

	log.Println("server shutdown complete")
	done <- true
}

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting channel integration engine")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded", "environment", cfg.Environment, "port", cfg.Port, "channel_enabled", cfg.ChannelEnabled)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected successfully")

	if err := database.CreateUniqueConstraints(db); err != nil {
		logger.Warn("failed to create database constraints", "error", err)
	}

	if err := database.RecoverInFlightWork(db); err != nil {
		logger.Warn("failed to recover in-flight work", "error", err)
	}

	rateStates := ratestate.New(db)
	channelClient := channel.New(cfg.ChannelBaseURL, rateStates, db)
	pricingEngine := pricing.New()
	reporter := health.NewReporter(db, rateStates, cfg.ChannelEnabled)

	outboxWorker := outbox.NewWorker(db, channelClient, pricingEngine, outbox.Config{
		PollInterval:    cfg.OutboxPollInterval,
		BatchSize:       cfg.OutboxBatchSize,
		MaxPayloadBytes: int(cfg.ChannelMaxPayloadBytes),
		SyncHorizonDays: cfg.ChannelSyncHorizonDays,
	})

	webhookProcessor := webhook.NewProcessor(db, webhook.Config{
		PollInterval: cfg.WebhookPollInterval,
		BatchSize:    cfg.WebhookBatchSize,
	})

	sched, err := scheduler.New(db, cfg.SchedulerTimezone)
	if err != nil {
		logger.Error("failed to initialize scheduler", "error", err)
		os.Exit(1)
	}

	autoTransitioner := bookinglifecycle.NewAutoTransitioner(db, cfg.NoShowAutoCancelEnabled)

	workersCtx, stopWorkers := context.WithCancel(context.Background())

	if cfg.ChannelEnabled {
		go outboxWorker.Run(workersCtx)
		go webhookProcessor.Run(workersCtx)
		go sched.Run(workersCtx)
		logger.Info("background workers started", "outbox_poll", cfg.OutboxPollInterval, "webhook_poll", cfg.WebhookPollInterval, "scheduler_tz", cfg.SchedulerTimezone)
	} else {
		logger.Warn("channel integration disabled, background workers not started")
	}
	go autoTransitioner.RunLoop(workersCtx, 1*time.Hour)

	serverInstance := server.New(cfg, logger, db, rateStates, reporter)
	logger.Info("server initialized successfully")

	logger.Info("key endpoints", "webhook", "POST /webhooks/channex/bookings", "health", "GET /health/integration", "admin", "GET /admin/unmatched-events")
	logger.Info("ready", "url", "http://localhost:"+cfg.Port, "environment", cfg.Environment)

	done := make(chan bool, 1)
	go gracefulShutdown(serverInstance.GetHTTPServer(), stopWorkers, done)

	if err := serverInstance.Start(); err != nil && err != http.ErrServerClosed {
		logger.Error("server startup error", "error", err)
		stopWorkers()
		if dbErr := database.CloseConnection(db); dbErr != nil {
			logger.Error("failed to close database connection", "error", dbErr)
		}
		os.Exit(1)
	}

	<-done

	if err := database.CloseConnection(db); err != nil {
		logger.Error("failed to close database connection", "error", err)
	} else {
		logger.Info("database connection closed")
	}

	logger.Info("channel integration engine shutdown complete")
}
