package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"mastobridge/internal/source"
)

const (
	sourceName     = "feed"
	defaultTimeout = 30 * time.Second
	userAgent      = "mastobridge/1.0 (+feed mirror)"
)

// trailingDigitsRe derives a stable id from permalinks that end in a
// numeric post id, for feeds without GUIDs.
var trailingDigitsRe = regexp.MustCompile(`(\d+)/?$`)

// Source discovers items from an RSS or Atom feed.
type Source struct {
	url    string
	client *http.Client
}

// Config holds configuration for the feed source.
type Config struct {
	URL     string
	Timeout time.Duration
}

// New creates a feed source.
func New(cfg Config) *Source {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Source{
		url: cfg.URL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: &uaTransport{base: http.DefaultTransport},
		},
	}
}

// Name returns the source name.
func (s *Source) Name() string {
	return sourceName
}

// Discover fetches and parses the feed. Entries without a publish
// timestamp cannot be ordered against the watermark and are dropped.
func (s *Source) Discover(ctx context.Context) ([]source.Item, error) {
	parser := gofeed.NewParser()
	parser.Client = s.client

	parsed, err := parser.ParseURLWithContext(s.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", s.url, err)
	}

	items := make([]source.Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		publishedAt := entryTime(entry)
		if publishedAt.IsZero() {
			slog.Warn("feed entry has no publish time, dropping", "link", entry.Link)
			continue
		}

		items = append(items, source.Item{
			ID:          entryID(entry),
			PublishedAt: publishedAt,
			RawContent:  entryContent(entry),
			Link:        entry.Link,
			MediaURLs:   entryMedia(entry),
		})
	}

	slog.Debug("discovered feed entries", "url", s.url, "total", len(parsed.Items), "usable", len(items))
	return items, nil
}

func entryTime(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return *entry.PublishedParsed
	}
	if entry.UpdatedParsed != nil {
		return *entry.UpdatedParsed
	}
	return time.Time{}
}

func entryID(entry *gofeed.Item) string {
	if entry.GUID != "" {
		return entry.GUID
	}
	if m := trailingDigitsRe.FindStringSubmatch(entry.Link); m != nil {
		return m[1]
	}
	return entry.Link
}

func entryContent(entry *gofeed.Item) string {
	if entry.Content != "" {
		return entry.Content
	}
	return entry.Description
}

func entryMedia(entry *gofeed.Item) []string {
	var urls []string
	for _, enc := range entry.Enclosures {
		if enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "image/") || strings.HasPrefix(enc.Type, "video/") {
			urls = append(urls, enc.URL)
		}
	}
	return urls
}

// uaTransport injects a User-Agent header into every request.
type uaTransport struct {
	base http.RoundTripper
}

func (t *uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not mutate the caller's request.
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", userAgent)
	return t.base.RoundTrip(clone)
}
