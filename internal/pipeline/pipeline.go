package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"mastobridge/internal/compose"
	"mastobridge/internal/history"
	"mastobridge/internal/mastodon"
	"mastobridge/internal/novelty"
	"mastobridge/internal/source"
	"mastobridge/internal/watermark"
)

// MediaUploader turns media URLs into platform attachment ids, best
// effort.
type MediaUploader interface {
	UploadAll(ctx context.Context, urls []string) []string
}

// Poster publishes a composed body with attachments.
type Poster interface {
	Publish(ctx context.Context, body string, attachmentIDs []string) (*mastodon.Status, error)
}

// Pipeline wires discovery, novelty filtering, composition, media and
// publishing into one sequential run. Items are processed strictly one
// at a time, oldest first; the watermark advances only after a
// confirmed publish.
type Pipeline struct {
	src       source.Source
	store     watermark.Store
	filter    *novelty.Filter
	media     MediaUploader
	poster    Poster
	history   *history.Store
	composing compose.Options
	dryRun    bool
}

// Config holds pipeline configuration. History is optional; DryRun
// composes and logs without posting or advancing the watermark.
type Config struct {
	Source    source.Source
	Watermark watermark.Store
	Filter    *novelty.Filter
	Media     MediaUploader
	Poster    Poster
	History   *history.Store
	Compose   compose.Options
	DryRun    bool
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		src:       cfg.Source,
		store:     cfg.Watermark,
		filter:    cfg.Filter,
		media:     cfg.Media,
		poster:    cfg.Poster,
		history:   cfg.History,
		composing: cfg.Compose,
		dryRun:    cfg.DryRun,
	}
}

// Summary is the outcome of one run.
type Summary struct {
	RunID      string
	Discovered int
	Published  int
	Skipped    int
	Failed     int
}

// Run executes one complete pass: load the watermark, discover and sort
// items, then publish each novel item in order. Per-item failures are
// isolated; only authentication failures abort the run.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunID: uuid.New().String()}
	log := slog.With("run_id", summary.RunID, "source", p.src.Name())

	mark := p.store.Load(ctx)

	items, err := p.src.Discover(ctx)
	if err != nil {
		return summary, fmt.Errorf("discover: %w", err)
	}

	// Items without a publish time cannot be ordered or compared
	// against the watermark.
	usable := items[:0]
	for _, item := range items {
		if !item.HasPublishedAt() {
			log.Warn("item has no publish time, skipping", "item_id", item.ID)
			summary.Skipped++
			continue
		}
		usable = append(usable, item)
	}
	source.SortAscending(usable)
	summary.Discovered = len(items)
	log.Info("discovered items", "total", len(items), "usable", len(usable))

	for _, item := range usable {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if !p.filter.IsNovel(item, mark) {
			log.Debug("item already published", "item_id", item.ID, "published_at", item.PublishedAt)
			summary.Skipped++
			continue
		}

		if err := p.process(ctx, log, item, summary); err != nil {
			return summary, err
		}
	}

	log.Info("run complete",
		"published", summary.Published,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

// process handles one novel item. The returned error is non-nil only
// for failures fatal to the whole run.
func (p *Pipeline) process(ctx context.Context, log *slog.Logger, item source.Item, summary *Summary) error {
	msg, err := compose.Normalize(item, p.composing)
	if err != nil {
		if errors.Is(err, compose.ErrEmptyBody) {
			log.Warn("item is empty after stripping, skipping", "item_id", item.ID)
			summary.Skipped++
			return nil
		}
		log.Warn("normalize failed, skipping", "item_id", item.ID, "error", err)
		summary.Skipped++
		return nil
	}

	if p.dryRun {
		log.Info("dry run, would publish",
			"item_id", item.ID,
			"published_at", item.PublishedAt,
			"body", msg.Body,
			"media_urls", len(msg.MediaURLs),
		)
		summary.Published++
		return nil
	}

	attachmentIDs := p.media.UploadAll(ctx, msg.MediaURLs)

	status, err := p.poster.Publish(ctx, msg.Body, attachmentIDs)
	if err != nil {
		if mastodon.IsAuth(err) {
			return fmt.Errorf("publish: %w", err)
		}
		log.Warn("publish failed, skipping item", "item_id", item.ID, "error", err)
		summary.Failed++
		return nil
	}

	if err := p.store.Advance(ctx, item); err != nil {
		// The post went out; losing the ledger entry means the next
		// run may try again, which dedup has to absorb.
		log.Error("watermark advance failed", "item_id", item.ID, "error", err)
	}

	if p.history != nil {
		rec := history.Publish{
			RunID:           summary.RunID,
			ItemID:          item.ID,
			StatusID:        status.ID,
			StatusURL:       status.URL,
			ItemPublishedAt: item.PublishedAt,
		}
		if err := p.history.RecordPublish(ctx, rec); err != nil {
			log.Warn("history record failed", "item_id", item.ID, "error", err)
		}
	}

	log.Info("published item",
		"item_id", item.ID,
		"published_at", item.PublishedAt,
		"status_id", status.ID,
		"attachments", len(attachmentIDs),
	)
	summary.Published++
	return nil
}
