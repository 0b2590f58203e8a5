package publisher

import (
	"context"
	"log/slog"
	"time"

	"mastobridge/internal/mastodon"
	"mastobridge/internal/retry"
)

const (
	// DefaultCooldown is the wait after a rate-limit response.
	DefaultCooldown = 5 * time.Minute

	// DefaultPace is the inter-post delay keeping the account inside
	// platform rate limits.
	DefaultPace = 15 * time.Second

	defaultAttempts = 3
)

// StatusPoster is the slice of the platform client the publisher needs.
type StatusPoster interface {
	CreateStatus(ctx context.Context, text string, mediaIDs []string, visibility string) (*mastodon.Status, error)
}

// Publisher posts composed messages, waiting out rate limits and pacing
// between posts. Non-rate-limit platform errors are not retried; the
// caller decides whether they are fatal (auth) or a per-item skip.
type Publisher struct {
	client     StatusPoster
	visibility string
	policy     retry.Policy
	pace       time.Duration
	sleep      func(time.Duration)
}

// Config holds publisher configuration.
type Config struct {
	Client     StatusPoster
	Visibility string

	// Cooldown is the wait between rate-limited attempts. Zero means
	// DefaultCooldown.
	Cooldown time.Duration

	// MaxAttempts bounds rate-limit retries. Zero means 3.
	MaxAttempts int

	// Pace is the delay enforced after every publish attempt,
	// successful or not. Zero means DefaultPace.
	Pace time.Duration

	// Sleep defaults to time.Sleep; tests override it.
	Sleep func(time.Duration)
}

// New creates a publisher.
func New(cfg Config) *Publisher {
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	pace := cfg.Pace
	if pace <= 0 {
		pace = DefaultPace
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	visibility := cfg.Visibility
	if visibility == "" {
		visibility = "public"
	}

	return &Publisher{
		client:     cfg.Client,
		visibility: visibility,
		policy: retry.Policy{
			MaxAttempts: attempts,
			Delay:       cooldown,
			Sleep:       sleep,
			Classify: func(err error) retry.Outcome {
				if mastodon.IsRateLimit(err) {
					return retry.Retry
				}
				return retry.Skip
			},
		},
		pace:  pace,
		sleep: sleep,
	}
}

// Publish posts body with the given attachments. The returned status is
// the reference derived watermark recovery later reads the footer from.
// The pacing delay runs before returning, whatever the outcome.
func (p *Publisher) Publish(ctx context.Context, body string, attachmentIDs []string) (*mastodon.Status, error) {
	defer p.sleep(p.pace)

	var status *mastodon.Status
	err := p.policy.Do(ctx, func() error {
		var postErr error
		status, postErr = p.client.CreateStatus(ctx, body, attachmentIDs, p.visibility)
		if postErr != nil && mastodon.IsRateLimit(postErr) {
			slog.Warn("rate limited, cooling down", "cooldown", p.policy.Delay)
		}
		return postErr
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}
