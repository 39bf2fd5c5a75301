package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"trailmark/internal/app"
	"trailmark/internal/config"
	"trailmark/internal/logger"
	"trailmark/internal/worker"
)

func main() {
	l := logger.New(os.Stdout, slog.LevelInfo)
	slog.SetDefault(l)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, l); err != nil {
		slog.Error("app exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	var sum worker.Summarizer
	if cfg.EnableEnrichWorker {
		s, closeSummarizer, err := app.NewSummarizer(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeSummarizer()
		sum = s
	}

	a, err := app.New(cfg, deps.DB, deps.NSQProducer, sum, l)
	if err != nil {
		return err
	}
	if err := a.StartConsumers(); err != nil {
		return err
	}
	slog.Info("trailmark started", "api", cfg.EnableAPI, "enrich", cfg.EnableEnrichWorker, "persist", cfg.EnablePersistWorker)

	return a.Run(ctx)
}
