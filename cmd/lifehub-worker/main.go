package main

import (
	"context"
	"errors"
	"time"

	"lifehub/internal/cli"
	"lifehub/internal/log"
	"lifehub/internal/services"
	"lifehub/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(log.Setup("info", log.ComponentWorker), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)
	logger.Info("Starting lifehub-worker")

	tokens, err := cfg.Tokens()
	if err != nil {
		cli.Fatal(logger, "Invalid API tokens", err)
	}

	res, err := cli.OpenBackend(context.Background(), logger.WithComponent(log.ComponentBackend), cfg, true)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", cfg.DataBackend)
	}

	exporter, err := cli.OpenExporter(context.Background(), cfg)
	if err != nil {
		_ = res.Cleanup()
		cli.Fatal(logger, "Failed to initialize spreadsheet export", err)
	}
	if exporter == nil {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	} else {
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	// The worker never publishes: snapshots are not events.
	accounting := services.NewAccountingService(res.Store, nil, services.AccountingOptions{
		AllowOverdraft: cfg.AllowOverdraft,
	})
	eventWorker := worker.NewEventWorker(accounting, exporter)

	scheduler := services.NewSnapshotScheduler(accounting, exporter, services.SnapshotSchedulerConfig{
		Interval: cfg.SnapshotInterval,
		Users:    tokens.Users(),
	})

	parent, stop := context.WithCancel(context.Background())
	defer stop()

	ctx, done := cli.GracefulShutdown(parent, logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		if err := scheduler.Stop(ctx); err != nil {
			logger.Error("Snapshot scheduler shutdown error", "error", err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	if len(tokens) > 0 {
		if err := scheduler.Start(ctx); err != nil {
			cli.Fatal(logger, "Failed to start snapshot scheduler", err)
		}
		logger.Info("Snapshot scheduler started",
			"interval", cfg.SnapshotInterval,
			"users", len(tokens))
	} else {
		logger.Info("Skipping scheduled snapshots - no users configured")
	}

	go func() {
		if err := res.Events.ConsumeEvents(ctx, eventWorker.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Event consumption failed", "error", err)
		}
		stop()
	}()

	<-ctx.Done()
	<-done
}
