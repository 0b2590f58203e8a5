package watermark

import (
	"context"
	"time"

	"mastobridge/internal/source"
)

// Mode selects how the already-published boundary is represented.
type Mode string

const (
	// ModeIDs keeps a bounded ledger of published item ids.
	ModeIDs Mode = "ids"

	// ModeTimestamps keeps a bounded ledger of published timestamps.
	ModeTimestamps Mode = "timestamps"

	// ModeDerived keeps no local state; the boundary is recovered from
	// the target account's own recent posts.
	ModeDerived Mode = "derived"
)

// DefaultCap bounds ledger length; older entries are evicted FIFO.
const DefaultCap = 20

// Watermark is the boundary of already-published content. Ledger slices
// are ordered oldest first. A zero Watermark means "nothing published
// yet": every discovered item is novel.
type Watermark struct {
	IDs          []string
	Times        []time.Time
	Fingerprints map[string]struct{}
}

// Latest returns the effective most-recent published timestamp.
func (w *Watermark) Latest() (time.Time, bool) {
	var latest time.Time
	for _, t := range w.Times {
		if t.After(latest) {
			latest = t
		}
	}
	return latest, !latest.IsZero()
}

// HasID reports whether id is present in the ledger.
func (w *Watermark) HasID(id string) bool {
	for _, known := range w.IDs {
		if known == id {
			return true
		}
	}
	return false
}

// HasFingerprint reports whether fp was seen in the recovered history.
func (w *Watermark) HasFingerprint(fp string) bool {
	_, ok := w.Fingerprints[fp]
	return ok
}

// Store persists and recovers the watermark across runs. Load never
// fails the run: missing, unreadable, or corrupt state comes back as an
// empty watermark, with the problem logged. Advance persists immediately
// after each successful publish, so a crash mid-run loses at most the
// items not yet confirmed published.
type Store interface {
	Load(ctx context.Context) *Watermark
	Advance(ctx context.Context, item source.Item) error
}
