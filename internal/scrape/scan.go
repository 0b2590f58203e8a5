package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mastobridge/internal/source"
)

const (
	sourceName = "timeline"

	// DefaultStallThreshold is how many consecutive unchanged content
	// measurements mean the timeline has converged.
	DefaultStallThreshold = 4

	// DefaultCeiling bounds total scan duration against a view that
	// never stabilizes.
	DefaultCeiling = 10 * time.Minute

	// DefaultScrollWait is the render pause after each scroll.
	DefaultScrollWait = 5 * time.Second
)

// scanState is the phase of the discovery scan.
type scanState int

const (
	stateLoading scanState = iota
	stateExtracting
	stateScrollCheck
	stateConverged
)

// Scanner incrementally reveals a scroll-rendered timeline until no
// further items appear, then hands back the complete set sorted oldest
// first.
type Scanner struct {
	view  View
	url   string
	stall int
	wait  time.Duration
	limit time.Duration
	sleep func(time.Duration)
	now   func() time.Time
}

// Config holds scanner configuration.
type Config struct {
	View View
	URL  string

	// StallThreshold, Ceiling and ScrollWait are deployment tunables;
	// zero values take the defaults above.
	StallThreshold int
	Ceiling        time.Duration
	ScrollWait     time.Duration

	// Sleep and Now default to the real clock; tests override them.
	Sleep func(time.Duration)
	Now   func() time.Time
}

// NewScanner creates a discovery scanner.
func NewScanner(cfg Config) *Scanner {
	stall := cfg.StallThreshold
	if stall <= 0 {
		stall = DefaultStallThreshold
	}
	limit := cfg.Ceiling
	if limit <= 0 {
		limit = DefaultCeiling
	}
	wait := cfg.ScrollWait
	if wait <= 0 {
		wait = DefaultScrollWait
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scanner{
		view:  cfg.View,
		url:   cfg.URL,
		stall: stall,
		wait:  wait,
		limit: limit,
		sleep: sleep,
		now:   now,
	}
}

// Name returns the source name.
func (s *Scanner) Name() string {
	return sourceName
}

// Discover runs the scan state machine: extract rendered items, scroll,
// and stop once the content extent stays unchanged for the stall
// threshold or the wall-clock ceiling passes.
func (s *Scanner) Discover(ctx context.Context) ([]source.Item, error) {
	var (
		items      []source.Item
		seen       = make(map[time.Time]struct{})
		lastExtent = -1
		stalls     = 0
		started    = s.now()
		state      = stateLoading
	)

	for state != stateConverged {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch state {
		case stateLoading:
			if err := s.view.Load(ctx, s.url); err != nil {
				return nil, fmt.Errorf("load timeline: %w", err)
			}
			state = stateExtracting

		case stateExtracting:
			html, err := s.view.HTML(ctx)
			if err != nil {
				return nil, fmt.Errorf("read rendered page: %w", err)
			}
			for _, item := range extractItems(html) {
				// Exact-timestamp dedupe across scroll batches.
				if _, dup := seen[item.PublishedAt]; dup {
					continue
				}
				seen[item.PublishedAt] = struct{}{}
				items = append(items, item)
			}
			state = stateScrollCheck

		case stateScrollCheck:
			if s.now().Sub(started) > s.limit {
				slog.Warn("scan ceiling reached, stopping", "ceiling", s.limit, "items", len(items))
				state = stateConverged
				break
			}

			if err := s.view.Scroll(ctx); err != nil {
				return nil, fmt.Errorf("scroll: %w", err)
			}
			s.sleep(s.wait)

			extent, err := s.view.ContentExtent(ctx)
			if err != nil {
				return nil, fmt.Errorf("measure content: %w", err)
			}
			if extent == lastExtent {
				stalls++
				if stalls >= s.stall {
					state = stateConverged
					break
				}
			} else {
				stalls = 0
				lastExtent = extent
			}
			state = stateExtracting
		}
	}

	source.SortAscending(items)
	slog.Debug("scan converged", "items", len(items), "elapsed", s.now().Sub(started))
	return items, nil
}
