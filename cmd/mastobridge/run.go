package main

import (
	"context"
	"fmt"

	"mastobridge/internal/app"
	"mastobridge/internal/config"
	"mastobridge/internal/feed"
	"mastobridge/internal/pipeline"

	"github.com/spf13/cobra"
)

var runDryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Publish new feed entries",
	Long: `Fetch the configured feed, find entries newer than the watermark
and publish them to Mastodon, oldest first.

Examples:
  mastobridge run            # Actually publish
  mastobridge run --dry-run  # Show what would be published without posting`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Show what would be published without actually posting")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.ValidateForFeed(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	src := feed.New(feed.Config{URL: cfg.FeedURL})

	summary, err := a.NewPipeline(src, runDryRun).Run(ctx)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	printSummary(summary, runDryRun)
	return nil
}

func printSummary(s *pipeline.Summary, dryRun bool) {
	fmt.Println()
	if dryRun {
		fmt.Println("=== DRY RUN - Nothing was posted ===")
	}
	fmt.Printf("Run:        %s\n", s.RunID)
	fmt.Printf("Discovered: %d\n", s.Discovered)
	fmt.Printf("Published:  %d\n", s.Published)
	fmt.Printf("Skipped:    %d\n", s.Skipped)
	fmt.Printf("Failed:     %d\n", s.Failed)
}
