package main

import (
	"context"
	"fmt"

	"mastobridge/internal/config"
	"mastobridge/internal/history"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent publishes",
	Long:  `List the most recent publishes recorded in the history database.`,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of publishes to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.ValidateForHistory(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	store, err := history.Open(ctx, cfg.HistoryDBPath)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	publishes, err := store.Recent(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("list publishes: %w", err)
	}

	if len(publishes) == 0 {
		fmt.Println("No publishes recorded yet.")
		return nil
	}

	fmt.Printf("=== Last %d publishes ===\n\n", len(publishes))
	for _, p := range publishes {
		fmt.Printf("%s  status=%s\n", p.PostedAt.Format("2006-01-02 15:04"), p.StatusID)
		if p.StatusURL != "" {
			fmt.Printf("  %s\n", p.StatusURL)
		}
		fmt.Printf("  item=%s published=%s run=%s\n\n",
			p.ItemID, p.ItemPublishedAt.Format("2006-01-02 15:04"), p.RunID)
	}

	return nil
}
