package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"mastobridge/internal/app"
	"mastobridge/internal/config"
	"mastobridge/internal/feed"
	"mastobridge/internal/scheduler"
	"mastobridge/internal/scrape"
	"mastobridge/internal/source"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the bridge daemon",
	Long: `Run the MastoBridge daemon that checks the configured source on an
interval and publishes anything new. The feed source is used when
FEED_URL is set, the timeline scanner otherwise.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var src source.Source
	switch {
	case cfg.FeedURL != "":
		if err := cfg.ValidateForFeed(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
		src = feed.New(feed.Config{URL: cfg.FeedURL})
	default:
		if err := cfg.ValidateForScan(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
		src = scrape.NewScanner(scrape.Config{
			View:           scrape.NewRemoteView(cfg.RenderServiceURL),
			URL:            cfg.TimelineURL,
			StallThreshold: cfg.ScrollStallThreshold,
			Ceiling:        cfg.ScanCeiling,
			ScrollWait:     cfg.ScrollWait,
		})
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	slog.Info("starting MastoBridge daemon",
		"source", src.Name(),
		"interval", cfg.WatchInterval,
	)

	sched := scheduler.New(scheduler.Config{
		Runner:   a.NewPipeline(src, false),
		Interval: cfg.WatchInterval,
	})

	// Run scheduler in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- sched.Run(ctx)
	}()

	// Wait for shutdown signal or error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("watch loop: %w", err)
		}
	}

	slog.Info("shutting down...")
	cancel()

	return nil
}
