package main

import (
	"context"
	"fmt"

	"mastobridge/internal/config"
	"mastobridge/internal/mastodon"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the Mastodon credentials",
	Long:  `Call the instance's credential endpoint and print the account the token belongs to.`,
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	client := mastodon.NewClient(mastodon.Config{
		BaseURL:     cfg.MastodonAPIURL,
		AccessToken: cfg.MastodonAccessToken,
	})

	account, err := client.VerifyCredentials(ctx)
	if err != nil {
		return fmt.Errorf("verify credentials: %w", err)
	}

	fmt.Printf("Authenticated as @%s\n", account.Acct)
	fmt.Printf("Account ID: %s\n", account.ID)
	fmt.Printf("Profile:    %s\n", account.URL)
	return nil
}
