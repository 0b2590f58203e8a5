package novelty

import (
	"fmt"
	"time"

	"mastobridge/internal/compose"
	"mastobridge/internal/source"
	"mastobridge/internal/watermark"
)

// Policy selects how an item is compared against the watermark. One
// policy is chosen per deployment and must stay fixed for the lifetime
// of a ledger; switching policies against the same ledger can duplicate
// or miss items.
type Policy string

const (
	// PolicyIdentity treats an item as novel iff its id is absent from
	// the id ledger.
	PolicyIdentity Policy = "identity"

	// PolicyTimestamp treats an item as novel iff it was published
	// strictly after the watermark, at full precision.
	PolicyTimestamp Policy = "timestamp"

	// PolicyMinute compares year, month, day, hour and minute as
	// sequential tie-break stages; differences below one minute count
	// as already published.
	PolicyMinute Policy = "minute"

	// PolicyFingerprint treats an item as novel iff its content digest
	// is absent from the digests recovered from the account's history.
	PolicyFingerprint Policy = "fingerprint"
)

// Filter decides whether a discovered item is new relative to the
// watermark.
type Filter struct {
	policy Policy
}

// New creates a filter for the given policy.
func New(policy Policy) (*Filter, error) {
	switch policy {
	case PolicyIdentity, PolicyTimestamp, PolicyMinute, PolicyFingerprint:
		return &Filter{policy: policy}, nil
	default:
		return nil, fmt.Errorf("novelty: unknown policy %q", policy)
	}
}

// Policy returns the configured comparison policy.
func (f *Filter) Policy() Policy {
	return f.policy
}

// IsNovel reports whether item has not been published yet according to
// the configured policy.
func (f *Filter) IsNovel(item source.Item, w *watermark.Watermark) bool {
	switch f.policy {
	case PolicyIdentity:
		if !item.HasID() {
			return false
		}
		return !w.HasID(item.ID)

	case PolicyTimestamp:
		latest, ok := w.Latest()
		if !ok {
			return true
		}
		return item.PublishedAt.After(latest)

	case PolicyMinute:
		latest, ok := w.Latest()
		if !ok {
			return true
		}
		return minuteAfter(item.PublishedAt, latest)

	case PolicyFingerprint:
		return !w.HasFingerprint(compose.ItemFingerprint(item))
	}
	return false
}

// minuteAfter compares two times component by component down to the
// minute, short-circuiting on the first inequality. Sub-minute
// differences compare equal.
func minuteAfter(a, b time.Time) bool {
	if a.Year() != b.Year() {
		return a.Year() > b.Year()
	}
	if a.Month() != b.Month() {
		return a.Month() > b.Month()
	}
	if a.Day() != b.Day() {
		return a.Day() > b.Day()
	}
	if a.Hour() != b.Hour() {
		return a.Hour() > b.Hour()
	}
	if a.Minute() != b.Minute() {
		return a.Minute() > b.Minute()
	}
	return false
}
