package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to a Mastodon instance's REST API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	accountID   string
}

// Config holds configuration for the Mastodon client.
type Config struct {
	BaseURL     string
	AccessToken string
}

// NewClient creates a new Mastodon API client.
func NewClient(cfg Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
	}
}

// Account is the authenticated account's identity.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Acct     string `json:"acct"`
	URL      string `json:"url"`
}

// Status is a published post.
type Status struct {
	ID        string `json:"id"`
	URI       string `json:"uri"`
	URL       string `json:"url"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// mediaResponse is the response from a media upload.
type mediaResponse struct {
	ID string `json:"id"`
}

// VerifyCredentials authenticates and caches the account identity.
func (c *Client) VerifyCredentials(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.get(ctx, "/api/v1/accounts/verify_credentials", nil, &account); err != nil {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}
	c.accountID = account.ID

	slog.Debug("authenticated with Mastodon",
		"account", account.Acct,
		"id", account.ID,
	)
	return &account, nil
}

// RecentStatuses returns the account's own most recent posts, newest first.
func (c *Client) RecentStatuses(ctx context.Context, limit int) ([]Status, error) {
	if c.accountID == "" {
		if _, err := c.VerifyCredentials(ctx); err != nil {
			return nil, err
		}
	}

	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	query.Set("exclude_reblogs", "true")

	var statuses []Status
	path := "/api/v1/accounts/" + c.accountID + "/statuses"
	if err := c.get(ctx, path, query, &statuses); err != nil {
		return nil, fmt.Errorf("recent statuses: %w", err)
	}
	return statuses, nil
}

// UploadMedia uploads raw media bytes and returns the attachment id.
func (c *Client) UploadMedia(ctx context.Context, data []byte, mimeType, description string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", fileNameFor(mimeType))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if description != "" {
		if err := writer.WriteField("description", description); err != nil {
			return "", fmt.Errorf("write description: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/media", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	var media mediaResponse
	if err := c.do(req, &media); err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}

	slog.Debug("uploaded media", "id", media.ID, "mime_type", mimeType, "bytes", len(data))
	return media.ID, nil
}

// createStatusRequest is the request body for posting a status.
type createStatusRequest struct {
	Status     string   `json:"status"`
	MediaIDs   []string `json:"media_ids,omitempty"`
	Visibility string   `json:"visibility,omitempty"`
}

// CreateStatus publishes a post with the given text and attachments.
func (c *Client) CreateStatus(ctx context.Context, text string, mediaIDs []string, visibility string) (*Status, error) {
	reqBody := createStatusRequest{
		Status:     text,
		MediaIDs:   mediaIDs,
		Visibility: visibility,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/statuses", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	var status Status
	if err := c.do(req, &status); err != nil {
		return nil, fmt.Errorf("create status: %w", err)
	}

	slog.Info("posted status",
		"id", status.ID,
		"url", status.URL,
		"attachments", len(mediaIDs),
	)
	return &status, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{StatusCode: resp.StatusCode, Message: apiMessage(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

// apiMessage extracts the "error" field Mastodon puts in failure bodies.
func apiMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}

func fileNameFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "media.jpg"
	case "image/png":
		return "media.png"
	case "image/gif":
		return "media.gif"
	case "video/mp4":
		return "media.mp4"
	default:
		return "media.bin"
	}
}
