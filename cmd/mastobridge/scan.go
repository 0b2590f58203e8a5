package main

import (
	"context"
	"fmt"

	"mastobridge/internal/app"
	"mastobridge/internal/config"
	"mastobridge/internal/scrape"

	"github.com/spf13/cobra"
)

var scanDryRun bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Publish new timeline posts",
	Long: `Scan the configured timeline through the render service, find posts
newer than the watermark and publish them to Mastodon, oldest first.

Examples:
  mastobridge scan            # Actually publish
  mastobridge scan --dry-run  # Show what would be published without posting`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanDryRun, "dry-run", false, "Show what would be published without actually posting")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.ValidateForScan(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	src := scrape.NewScanner(scrape.Config{
		View:           scrape.NewRemoteView(cfg.RenderServiceURL),
		URL:            cfg.TimelineURL,
		StallThreshold: cfg.ScrollStallThreshold,
		Ceiling:        cfg.ScanCeiling,
		ScrollWait:     cfg.ScrollWait,
	})

	summary, err := a.NewPipeline(src, scanDryRun).Run(ctx)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	printSummary(summary, scanDryRun)
	return nil
}
