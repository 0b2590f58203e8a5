package compose

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"mastobridge/internal/source"
)

const (
	// DefaultMaxLength is the Mastodon default per-post character limit.
	DefaultMaxLength = 500

	// DefaultMaxAttachments is the Mastodon per-post attachment limit.
	DefaultMaxAttachments = 4

	footerPrefix     = "Published on: "
	footerTimeLayout = "02/01/2006 15:04"
	separator        = "\n\n"
	ellipsis         = "..."
	fingerprintTag   = "ref:"
)

// ErrEmptyBody means the item produced no text after stripping and the
// item must be skipped, not published.
var ErrEmptyBody = errors.New("compose: empty body after stripping")

// DefaultBoilerplate strips the self-referential source links feeds
// embed in every entry.
var DefaultBoilerplate = []*regexp.Regexp{
	regexp.MustCompile(`https?://(www\.)?facebook\.com\S*`),
}

var (
	whitespaceRe  = regexp.MustCompile(`[ \t]{2,}`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
	footerRe      = regexp.MustCompile(footerPrefix + `(\d{2}/\d{2}/\d{4} \d{2}:\d{2})`)
	fingerprintRe = regexp.MustCompile(fingerprintTag + `([0-9a-f]{12})`)
)

// Options controls message composition.
type Options struct {
	MaxLength      int
	MaxAttachments int

	// Hashtags is an optional literal hashtag string appended before the
	// footer, e.g. "#news #mirror".
	Hashtags string

	// Boilerplate patterns are removed from the stripped text verbatim.
	Boilerplate []*regexp.Regexp

	// WithFingerprint embeds a content digest marker in the footer so a
	// later run can recover it from the published post.
	WithFingerprint bool
}

// Message is the final composed post.
type Message struct {
	Body        string
	MediaURLs   []string
	Fingerprint string
}

// Normalize converts a raw item into a platform-safe message: markup is
// stripped, media references collected in document order, boilerplate
// removed, and the text truncated so the footer always survives intact.
func Normalize(item source.Item, opts Options) (Message, error) {
	maxLength := opts.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	maxAttachments := opts.MaxAttachments
	if maxAttachments <= 0 {
		maxAttachments = DefaultMaxAttachments
	}

	text, extracted := stripMarkup(item.RawContent)
	fingerprintText := text

	for _, re := range opts.Boilerplate {
		text = re.ReplaceAllString(text, "")
	}
	text = collapseWhitespace(text)

	if text == "" {
		return Message{}, ErrEmptyBody
	}

	msg := Message{
		MediaURLs: capURLs(append(append([]string{}, item.MediaURLs...), extracted...), maxAttachments),
	}

	footer := footerPrefix + item.PublishedAt.Format(footerTimeLayout)
	if opts.WithFingerprint {
		msg.Fingerprint = Fingerprint(fingerprintText, item.Link)
		footer += " " + fingerprintTag + msg.Fingerprint
	}

	msg.Body = truncate(text, maxLength, opts.Hashtags, footer)
	return msg, nil
}

// Fingerprint returns a short deterministic digest over the item's text
// and canonical link.
func Fingerprint(text, link string) string {
	sum := sha256.Sum256([]byte(text + "\n" + link))
	return hex.EncodeToString(sum[:])[:12]
}

// ItemFingerprint digests a raw item the same way Normalize does, so the
// novelty filter and the composed footer always agree.
func ItemFingerprint(item source.Item) string {
	text, _ := stripMarkup(item.RawContent)
	return Fingerprint(text, item.Link)
}

// ParseFooterTime extracts the publish time embedded in a composed post.
// Footer timestamps carry minute precision and no zone.
func ParseFooterTime(body string) (time.Time, bool) {
	m := footerRe.FindStringSubmatch(body)
	if m == nil {
		return time.Time{}, false
	}
	ts, err := time.Parse(footerTimeLayout, m[1])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// ParseFingerprint extracts the content digest embedded in a composed post.
func ParseFingerprint(body string) (string, bool) {
	m := fingerprintRe.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// stripMarkup removes HTML from raw content, collecting image and video
// source URLs in document order before the elements are dropped. Plain
// text input passes through unchanged.
func stripMarkup(raw string) (string, []string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		// Not parseable as HTML, treat as plain text.
		return strings.TrimSpace(raw), nil
	}

	var urls []string
	doc.Find("img[src], video source[src], source[src]").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		urls = append(urls, src)
	})

	doc.Find("img, video, audio, script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, blockquote").AfterHtml("\n")

	return strings.TrimSpace(doc.Text()), urls
}

func collapseWhitespace(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// truncate cuts the body so that hashtags and footer always fit whole.
// The footer is never truncated: derived watermark recovery parses it
// back out of the published post.
func truncate(text string, maxLength int, hashtags, footer string) string {
	tail := separator + footer
	if hashtags != "" {
		tail = separator + hashtags + tail
	}

	budget := maxLength - utf8.RuneCountInString(tail)
	if budget < 0 {
		budget = 0
	}

	if utf8.RuneCountInString(text) > budget {
		runes := []rune(text)
		cut := budget - utf8.RuneCountInString(ellipsis)
		if cut < 0 {
			cut = 0
		}
		text = strings.TrimRight(string(runes[:cut]), " \t\n")
		text += ellipsis
	}

	return fmt.Sprintf("%s%s", text, tail)
}

func capURLs(urls []string, limit int) []string {
	seen := make(map[string]struct{}, len(urls))
	capped := make([]string, 0, limit)
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		capped = append(capped, u)
		if len(capped) == limit {
			break
		}
	}
	return capped
}
