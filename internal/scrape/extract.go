package scrape

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"mastobridge/internal/source"
)

// extractItems pulls the currently rendered posts out of the page. A
// post without a parseable timestamp cannot be ordered or deduplicated
// and is skipped.
func extractItems(html string) []source.Item {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var items []source.Item
	doc.Find("article").Each(func(_ int, article *goquery.Selection) {
		publishedAt, ok := articleTime(article)
		if !ok {
			return
		}

		items = append(items, source.Item{
			PublishedAt: publishedAt,
			RawContent:  articleContent(article),
			MediaURLs:   articleMedia(article),
		})
	})
	return items
}

func articleTime(article *goquery.Selection) (time.Time, bool) {
	datetime, ok := article.Find("time[datetime]").First().Attr("datetime")
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, datetime)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// articleContent prefers the dedicated text container; the full article
// markup is the fallback. Raw HTML is kept, the normalizer strips it.
func articleContent(article *goquery.Selection) string {
	text := article.Find(`[data-testid="tweetText"]`).First()
	if text.Length() > 0 {
		if inner, err := text.Html(); err == nil {
			return inner
		}
	}
	if inner, err := article.Html(); err == nil {
		return inner
	}
	return article.Text()
}

func articleMedia(article *goquery.Selection) []string {
	var urls []string
	article.Find("img[src], video source[src]").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || src == "" {
			return
		}
		if !keepMediaURL(src) {
			return
		}
		urls = append(urls, src)
	})
	return urls
}

// keepMediaURL drops avatars, emoji sprites and inline data URIs that
// render inside a post but are not its media.
func keepMediaURL(src string) bool {
	if strings.HasPrefix(src, "data:") {
		return false
	}
	if strings.Contains(src, "profile_images") || strings.Contains(src, "/emoji/") {
		return false
	}
	return true
}
