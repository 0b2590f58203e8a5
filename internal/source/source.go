package source

import (
	"context"
	"sort"
	"time"
)

// Item represents one unit of content discovered from a source.
// ID may be empty for sources that do not expose stable identifiers;
// PublishedAt is required downstream, items without one are dropped
// before processing.
type Item struct {
	ID          string
	PublishedAt time.Time
	RawContent  string
	Link        string
	MediaURLs   []string
}

// HasID reports whether the source provided a stable identifier.
func (it Item) HasID() bool {
	return it.ID != ""
}

// HasPublishedAt reports whether the source provided a publish timestamp.
func (it Item) HasPublishedAt() bool {
	return !it.PublishedAt.IsZero()
}

// Source is the interface for content discovery backends.
type Source interface {
	// Name returns the name of this source.
	Name() string

	// Discover retrieves the currently visible items from the source.
	// Items are returned in no particular order; the pipeline sorts
	// them ascending by publish time before processing.
	Discover(ctx context.Context) ([]Item, error)
}

// SortAscending orders items oldest first, the order the novelty filter
// and watermark advance both assume.
func SortAscending(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.Before(items[j].PublishedAt)
	})
}
