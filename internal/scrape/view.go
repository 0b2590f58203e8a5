package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// View is the boundary to the rendered page. The browser itself lives in
// an external driver process; the scan only needs these four verbs.
type View interface {
	// Load navigates the view to url and waits for the initial render.
	Load(ctx context.Context, url string) error

	// HTML returns the currently rendered document.
	HTML(ctx context.Context) (string, error)

	// Scroll extends the view downward.
	Scroll(ctx context.Context) error

	// ContentExtent returns the measurable content height, the quantity
	// whose stagnation signals convergence.
	ContentExtent(ctx context.Context) (int, error)
}

// RemoteView drives a headless-render service over HTTP.
type RemoteView struct {
	httpClient *http.Client
	baseURL    string
}

// NewRemoteView creates a view backed by the driver service at baseURL.
func NewRemoteView(baseURL string) *RemoteView {
	return &RemoteView{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (v *RemoteView) Load(ctx context.Context, url string) error {
	return v.post(ctx, "/navigate", map[string]string{"url": url}, nil)
}

func (v *RemoteView) HTML(ctx context.Context) (string, error) {
	var resp struct {
		HTML string `json:"html"`
	}
	if err := v.get(ctx, "/html", &resp); err != nil {
		return "", err
	}
	return resp.HTML, nil
}

func (v *RemoteView) Scroll(ctx context.Context) error {
	return v.post(ctx, "/scroll", nil, nil)
}

func (v *RemoteView) ContentExtent(ctx context.Context) (int, error) {
	var resp struct {
		Height int `json:"height"`
	}
	if err := v.get(ctx, "/height", &resp); err != nil {
		return 0, err
	}
	return resp.Height, nil
}

func (v *RemoteView) post(ctx context.Context, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", v.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return v.do(req, out)
}

func (v *RemoteView) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", v.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return v.do(req, out)
}

func (v *RemoteView) do(req *http.Request, out any) error {
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("driver request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("driver returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("parse driver response: %w", err)
		}
	}
	return nil
}
