package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"mastobridge/internal/retry"
)

const (
	// DefaultTimeout bounds a single media download.
	DefaultTimeout = 20 * time.Second

	defaultMIME = "application/octet-stream"
)

// Uploader is the slice of the platform client the pipeline needs.
type Uploader interface {
	UploadMedia(ctx context.Context, data []byte, mimeType, description string) (string, error)
}

// Pipeline downloads source media and re-uploads it as platform
// attachments, best effort: a URL that keeps failing is dropped on its
// own and never aborts the item it belongs to.
type Pipeline struct {
	httpClient *http.Client
	uploader   Uploader
	policy     retry.Policy
}

// Config holds configuration for the media pipeline.
type Config struct {
	Uploader Uploader

	// Timeout bounds each download attempt. Zero means DefaultTimeout.
	Timeout time.Duration

	// Policy bounds download retries per URL.
	Policy retry.Policy
}

// New creates a media pipeline.
func New(cfg Config) *Pipeline {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Pipeline{
		httpClient: &http.Client{Timeout: timeout},
		uploader:   cfg.Uploader,
		policy:     cfg.Policy,
	}
}

// UploadAll processes each URL in order and returns the attachment ids
// that succeeded, order preserved. The caller caps the URL list before
// handing it over.
func (p *Pipeline) UploadAll(ctx context.Context, urls []string) []string {
	ids := make([]string, 0, len(urls))

	for _, mediaURL := range urls {
		var data []byte
		err := p.policy.Do(ctx, func() error {
			var downloadErr error
			data, downloadErr = p.download(ctx, mediaURL)
			return downloadErr
		})
		if err != nil {
			slog.Warn("media download failed, dropping attachment", "url", mediaURL, "error", err)
			continue
		}

		mimeType := guessMIME(mediaURL, data)
		id, err := p.uploader.UploadMedia(ctx, data, mimeType, "Mirrored media")
		if err != nil {
			slog.Warn("media upload failed, dropping attachment", "url", mediaURL, "error", err)
			continue
		}
		ids = append(ids, id)
	}

	return ids
}

func (p *Pipeline) download(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// extMIME covers the media types timelines actually serve; the system
// mime table lacks video types on some platforms.
var extMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

// guessMIME resolves a media type from the URL extension first, then the
// content itself, defaulting to a safe octet-stream.
func guessMIME(mediaURL string, data []byte) string {
	if u, err := url.Parse(mediaURL); err == nil {
		ext := strings.ToLower(path.Ext(u.Path))
		if mt, ok := extMIME[ext]; ok {
			return mt
		}
		if ext != "" {
			if mt := mime.TypeByExtension(ext); mt != "" {
				return mt
			}
		}
	}
	if len(data) > 0 {
		return http.DetectContentType(data)
	}
	return defaultMIME
}
