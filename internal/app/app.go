package app

import (
	"context"
	"fmt"

	"mastobridge/internal/compose"
	"mastobridge/internal/config"
	"mastobridge/internal/history"
	"mastobridge/internal/mastodon"
	"mastobridge/internal/media"
	"mastobridge/internal/novelty"
	"mastobridge/internal/pipeline"
	"mastobridge/internal/publisher"
	"mastobridge/internal/retry"
	"mastobridge/internal/source"
	"mastobridge/internal/watermark"
)

// App is the main application container holding all dependencies.
type App struct {
	Config    *config.Config
	Client    *mastodon.Client
	Watermark watermark.Store
	Filter    *novelty.Filter
	Media     *media.Pipeline
	Publisher *publisher.Publisher
	History   *history.Store
}

// New creates an application instance with all dependencies wired up.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	client := mastodon.NewClient(mastodon.Config{
		BaseURL:     cfg.MastodonAPIURL,
		AccessToken: cfg.MastodonAccessToken,
	})

	var store watermark.Store
	switch watermark.Mode(cfg.WatermarkMode) {
	case watermark.ModeDerived:
		store = watermark.NewRemoteStore(client)
	case watermark.ModeIDs, watermark.ModeTimestamps:
		store = watermark.NewFileStore(cfg.WatermarkPath, watermark.Mode(cfg.WatermarkMode), cfg.WatermarkCap)
	default:
		return nil, fmt.Errorf("unknown watermark mode %q", cfg.WatermarkMode)
	}

	filter, err := novelty.New(novelty.Policy(cfg.NoveltyPolicy))
	if err != nil {
		return nil, err
	}

	mediaPipe := media.New(media.Config{
		Uploader: client,
		Timeout:  cfg.MediaTimeout,
		Policy: retry.Policy{
			MaxAttempts: cfg.MediaRetries,
			Delay:       cfg.MediaRetryDelay,
		},
	})

	pub := publisher.New(publisher.Config{
		Client:      client,
		Visibility:  cfg.PostVisibility,
		Cooldown:    cfg.RateLimitCooldown,
		MaxAttempts: cfg.RateLimitRetries,
		Pace:        cfg.PacingDelay,
	})

	var hist *history.Store
	if cfg.HistoryDBPath != "" {
		hist, err = history.Open(ctx, cfg.HistoryDBPath)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
	}

	return &App{
		Config:    cfg,
		Client:    client,
		Watermark: store,
		Filter:    filter,
		Media:     mediaPipe,
		Publisher: pub,
		History:   hist,
	}, nil
}

// ComposeOptions builds the normalizer options for this deployment.
func (a *App) ComposeOptions() compose.Options {
	return compose.Options{
		MaxLength:       a.Config.MaxPostLength,
		MaxAttachments:  a.Config.MaxAttachments,
		Hashtags:        a.Config.Hashtags,
		Boilerplate:     compose.DefaultBoilerplate,
		WithFingerprint: a.Filter.Policy() == novelty.PolicyFingerprint,
	}
}

// NewPipeline wires a run pipeline around the given source.
func (a *App) NewPipeline(src source.Source, dryRun bool) *pipeline.Pipeline {
	return pipeline.New(pipeline.Config{
		Source:    src,
		Watermark: a.Watermark,
		Filter:    a.Filter,
		Media:     a.Media,
		Poster:    a.Publisher,
		History:   a.History,
		Compose:   a.ComposeOptions(),
		DryRun:    dryRun,
	})
}

// Close closes all resources.
func (a *App) Close() error {
	if a.History != nil {
		return a.History.Close()
	}
	return nil
}
