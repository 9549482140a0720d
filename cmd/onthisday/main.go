package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/onthisday/internal/cfg"
	"github.com/lysyi3m/onthisday/internal/metrics"
	"github.com/lysyi3m/onthisday/internal/pipeline"
	"github.com/lysyi3m/onthisday/internal/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "onthisday: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	appCfg, err := cfg.Load(args, time.Now())
	if err != nil {
		return err
	}
	if appCfg == nil {
		// Help was shown
		return nil
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
		With("run_id", uuid.NewString())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting ingestion",
		"version", appCfg.Version,
		"month", appCfg.Month,
		"day", appCfg.Day,
		"year", appCfg.Year,
		"dry_run", appCfg.DryRun)

	m := metrics.New()
	p := pipeline.New(appCfg, pipeline.Deps{Metrics: m, Logger: logger})

	_, runErr := p.Run(ctx, func(ctx context.Context) (store.Store, error) {
		return store.Open(ctx, appCfg.StoreOptions(), logger)
	})

	if appCfg.PushgatewayURL != "" {
		if err := m.Push(appCfg.PushgatewayURL, "onthisday"); err != nil {
			logger.Warn("Failed to push metrics", "url", appCfg.PushgatewayURL, "error", err)
		}
	}

	if runErr != nil {
		logger.Error("Ingestion failed", "error", runErr)
		return runErr
	}
	logger.Info("Ingestion completed")
	return nil
}
