package pipeline

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mastobridge/internal/compose"
	"mastobridge/internal/mastodon"
	"mastobridge/internal/novelty"
	"mastobridge/internal/source"
	"mastobridge/internal/watermark"
)

var t1 = time.Date(2025, 3, 14, 9, 26, 0, 0, time.UTC)

type fakeSource struct {
	items []source.Item
	err   error
}

func (f *fakeSource) Name() string { return "fake" }
func (f *fakeSource) Discover(context.Context) ([]source.Item, error) {
	return append([]source.Item{}, f.items...), f.err
}

type fakeMedia struct {
	calls [][]string
}

func (f *fakeMedia) UploadAll(_ context.Context, urls []string) []string {
	f.calls = append(f.calls, urls)
	ids := make([]string, len(urls))
	for i, u := range urls {
		ids[i] = "attachment:" + u
	}
	return ids
}

type fakePoster struct {
	errs   []error
	posted []struct {
		body string
		ids  []string
	}
}

func (f *fakePoster) Publish(_ context.Context, body string, ids []string) (*mastodon.Status, error) {
	call := len(f.posted)
	f.posted = append(f.posted, struct {
		body string
		ids  []string
	}{body, ids})
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	return &mastodon.Status{ID: "status-1", URL: "https://example.social/@a/1"}, nil
}

func newIDPipeline(t *testing.T, src source.Source, poster Poster, media MediaUploader, path string) *Pipeline {
	t.Helper()
	filter, err := novelty.New(novelty.PolicyIdentity)
	require.NoError(t, err)
	return New(Config{
		Source:    src,
		Watermark: watermark.NewFileStore(path, watermark.ModeIDs, 20),
		Filter:    filter,
		Media:     media,
		Poster:    poster,
	})
}

func TestPipeline_Run(t *testing.T) {
	t.Run("publishes novel item and advances watermark", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "w.json")
		src := &fakeSource{items: []source.Item{{
			ID:          "123",
			PublishedAt: t1,
			RawContent:  "Hello <img src='a.jpg'>",
		}}}
		poster := &fakePoster{}
		media := &fakeMedia{}

		p := newIDPipeline(t, src, poster, media, path)
		summary, err := p.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, summary.Published)
		require.Len(t, poster.posted, 1)
		assert.Equal(t, []string{"attachment:a.jpg"}, poster.posted[0].ids)

		w := watermark.NewFileStore(path, watermark.ModeIDs, 20).Load(context.Background())
		assert.True(t, w.HasID("123"))
	})

	t.Run("second run with unchanged source publishes nothing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "w.json")
		src := &fakeSource{items: []source.Item{
			{ID: "1", PublishedAt: t1, RawContent: "one"},
			{ID: "2", PublishedAt: t1.Add(time.Minute), RawContent: "two"},
		}}
		poster := &fakePoster{}

		p := newIDPipeline(t, src, poster, &fakeMedia{}, path)
		first, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, first.Published)

		second, err := newIDPipeline(t, src, poster, &fakeMedia{}, path).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, second.Published)
		assert.Equal(t, 2, second.Skipped)
		assert.Len(t, poster.posted, 2, "no additional posts on second run")
	})

	t.Run("processes oldest first", func(t *testing.T) {
		src := &fakeSource{items: []source.Item{
			{ID: "new", PublishedAt: t1.Add(time.Hour), RawContent: "newest"},
			{ID: "old", PublishedAt: t1, RawContent: "oldest"},
		}}
		poster := &fakePoster{}

		p := newIDPipeline(t, src, poster, &fakeMedia{}, filepath.Join(t.TempDir(), "w.json"))
		_, err := p.Run(context.Background())
		require.NoError(t, err)

		require.Len(t, poster.posted, 2)
		assert.Contains(t, poster.posted[0].body, "oldest")
		assert.Contains(t, poster.posted[1].body, "newest")
	})

	t.Run("empty body is skipped, not published", func(t *testing.T) {
		src := &fakeSource{items: []source.Item{
			{ID: "1", PublishedAt: t1, RawContent: "<img src='only.jpg'>"},
		}}
		poster := &fakePoster{}

		p := newIDPipeline(t, src, poster, &fakeMedia{}, filepath.Join(t.TempDir(), "w.json"))
		summary, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Published)
		assert.Equal(t, 1, summary.Skipped)
		assert.Empty(t, poster.posted)
	})

	t.Run("items without publish time are dropped", func(t *testing.T) {
		src := &fakeSource{items: []source.Item{
			{ID: "undated", RawContent: "no time"},
			{ID: "dated", PublishedAt: t1, RawContent: "fine"},
		}}
		poster := &fakePoster{}

		p := newIDPipeline(t, src, poster, &fakeMedia{}, filepath.Join(t.TempDir(), "w.json"))
		summary, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Published)
		assert.Equal(t, 1, summary.Skipped)
	})

	t.Run("failed publish does not advance watermark", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "w.json")
		src := &fakeSource{items: []source.Item{
			{ID: "1", PublishedAt: t1, RawContent: "one"},
			{ID: "2", PublishedAt: t1.Add(time.Minute), RawContent: "two"},
		}}
		poster := &fakePoster{errs: []error{&mastodon.Error{StatusCode: http.StatusUnprocessableEntity}}}

		p := newIDPipeline(t, src, poster, &fakeMedia{}, path)
		summary, err := p.Run(context.Background())
		require.NoError(t, err, "per-item failure never aborts the run")
		assert.Equal(t, 1, summary.Failed)
		assert.Equal(t, 1, summary.Published)

		w := watermark.NewFileStore(path, watermark.ModeIDs, 20).Load(context.Background())
		assert.False(t, w.HasID("1"))
		assert.True(t, w.HasID("2"))
	})

	t.Run("auth failure aborts the run", func(t *testing.T) {
		src := &fakeSource{items: []source.Item{
			{ID: "1", PublishedAt: t1, RawContent: "one"},
			{ID: "2", PublishedAt: t1.Add(time.Minute), RawContent: "two"},
		}}
		poster := &fakePoster{errs: []error{&mastodon.Error{StatusCode: http.StatusUnauthorized}}}

		p := newIDPipeline(t, src, poster, &fakeMedia{}, filepath.Join(t.TempDir(), "w.json"))
		_, err := p.Run(context.Background())
		require.Error(t, err)
		assert.True(t, mastodon.IsAuth(err))
		assert.Len(t, poster.posted, 1, "run stops at the auth failure")
	})

	t.Run("dry run writes nothing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "w.json")
		src := &fakeSource{items: []source.Item{
			{ID: "1", PublishedAt: t1, RawContent: "one <img src='a.jpg'>"},
		}}
		poster := &fakePoster{}
		media := &fakeMedia{}
		filter, err := novelty.New(novelty.PolicyIdentity)
		require.NoError(t, err)

		p := New(Config{
			Source:    src,
			Watermark: watermark.NewFileStore(path, watermark.ModeIDs, 20),
			Filter:    filter,
			Media:     media,
			Poster:    poster,
			DryRun:    true,
		})
		summary, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Published)
		assert.Empty(t, poster.posted)
		assert.Empty(t, media.calls)

		w := watermark.NewFileStore(path, watermark.ModeIDs, 20).Load(context.Background())
		assert.False(t, w.HasID("1"))
	})

	t.Run("timestamp policy filters items at the watermark", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "w.json")
		store := watermark.NewFileStore(path, watermark.ModeTimestamps, 20)
		store.Load(context.Background())
		require.NoError(t, store.Advance(context.Background(), source.Item{PublishedAt: t1}))

		filter, err := novelty.New(novelty.PolicyTimestamp)
		require.NoError(t, err)
		src := &fakeSource{items: []source.Item{
			{ID: "same", PublishedAt: t1, RawContent: "same instant"},
			{ID: "later", PublishedAt: t1.Add(time.Second), RawContent: "later"},
		}}
		poster := &fakePoster{}

		p := New(Config{
			Source:    src,
			Watermark: watermark.NewFileStore(path, watermark.ModeTimestamps, 20),
			Filter:    filter,
			Media:     &fakeMedia{},
			Poster:    poster,
		})
		summary, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Published)
		require.Len(t, poster.posted, 1)
		assert.Contains(t, poster.posted[0].body, "later")
	})
}

func TestPipeline_ComposeOptionsFlow(t *testing.T) {
	src := &fakeSource{items: []source.Item{
		{ID: "1", PublishedAt: t1, RawContent: "body text"},
	}}
	poster := &fakePoster{}
	filter, err := novelty.New(novelty.PolicyIdentity)
	require.NoError(t, err)

	p := New(Config{
		Source:    src,
		Watermark: watermark.NewFileStore(filepath.Join(t.TempDir(), "w.json"), watermark.ModeIDs, 20),
		Filter:    filter,
		Media:     &fakeMedia{},
		Poster:    poster,
		Compose:   compose.Options{Hashtags: "#mirror"},
	})
	_, err = p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, poster.posted, 1)
	assert.Contains(t, poster.posted[0].body, "#mirror")
	assert.Contains(t, poster.posted[0].body, "Published on: 14/03/2025 09:26")
}
