package watermark

import (
	"context"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"mastobridge/internal/compose"
	"mastobridge/internal/mastodon"
	"mastobridge/internal/source"
)

// remoteHistoryLimit is how many of the account's recent posts are
// inspected when recovering the boundary.
const remoteHistoryLimit = 20

var tagRe = regexp.MustCompile(`<[^>]*>`)

// StatusReader is the slice of the platform client the derived store needs.
type StatusReader interface {
	RecentStatuses(ctx context.Context, limit int) ([]mastodon.Status, error)
}

// RemoteStore recovers the watermark from the target account's own post
// history instead of local state: the latest post's footer carries the
// publish time and, when fingerprinting is active, a content digest.
type RemoteStore struct {
	client StatusReader
}

// NewRemoteStore creates a derived-mode watermark store.
func NewRemoteStore(client StatusReader) *RemoteStore {
	return &RemoteStore{client: client}
}

// Load queries the account's recent posts once and extracts the embedded
// markers. If the history is unavailable or carries no marker, the run
// proceeds as a first run: everything is novel.
func (s *RemoteStore) Load(ctx context.Context) *Watermark {
	w := &Watermark{Fingerprints: make(map[string]struct{})}

	statuses, err := s.client.RecentStatuses(ctx, remoteHistoryLimit)
	if err != nil {
		slog.Warn("remote history unavailable, starting empty", "error", err)
		return w
	}

	for i, status := range statuses {
		body := stripTags(status.Content)

		// Only the newest post defines the timestamp boundary.
		if i == 0 {
			if ts, ok := compose.ParseFooterTime(body); ok {
				w.Times = append(w.Times, ts)
			} else {
				slog.Debug("latest post carries no footer marker", "status_id", status.ID)
			}
		}

		if fp, ok := compose.ParseFingerprint(body); ok {
			w.Fingerprints[fp] = struct{}{}
		}
	}
	return w
}

// Advance is a no-op: derived state lives in the published posts
// themselves, so the next run recovers the new boundary remotely.
func (s *RemoteStore) Advance(context.Context, source.Item) error {
	return nil
}

func stripTags(s string) string {
	s = strings.ReplaceAll(s, "<br", "\n<br")
	s = tagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(s))
}
