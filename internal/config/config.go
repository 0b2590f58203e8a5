package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Mastodon
	MastodonAPIURL      string
	MastodonAccessToken string
	PostVisibility      string

	// Sources
	FeedURL          string
	TimelineURL      string
	RenderServiceURL string

	// Composition
	Hashtags       string
	MaxPostLength  int
	MaxAttachments int

	// Watermark
	WatermarkMode string
	WatermarkPath string
	WatermarkCap  int
	NoveltyPolicy string

	// Media pipeline
	MediaTimeout    time.Duration
	MediaRetries    int
	MediaRetryDelay time.Duration

	// Publishing
	PacingDelay       time.Duration
	RateLimitCooldown time.Duration
	RateLimitRetries  int

	// Discovery scan
	ScrollWait           time.Duration
	ScrollStallThreshold int
	ScanCeiling          time.Duration

	// History (optional)
	HistoryDBPath string

	// Watch mode
	WatchInterval time.Duration

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables.
// It automatically loads .env file if present.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		MastodonAPIURL:      getEnv("MASTODON_API_URL", ""),
		MastodonAccessToken: getEnv("MASTODON_ACCESS_TOKEN", ""),
		PostVisibility:      getEnv("POST_VISIBILITY", "public"),
		FeedURL:             getEnv("FEED_URL", ""),
		TimelineURL:         getEnv("TIMELINE_URL", ""),
		RenderServiceURL:    getEnv("RENDER_SERVICE_URL", ""),
		Hashtags:            getEnv("HASHTAGS", ""),
		WatermarkMode:       getEnv("WATERMARK_MODE", "ids"),
		WatermarkPath:       getEnv("WATERMARK_PATH", "saved_entries.json"),
		NoveltyPolicy:       getEnv("NOVELTY_POLICY", ""),
		HistoryDBPath:       getEnv("HISTORY_DB_PATH", ""),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.MaxPostLength, err = getEnvInt("MAX_POST_LENGTH", "500"); err != nil {
		return nil, err
	}
	if cfg.MaxAttachments, err = getEnvInt("MAX_ATTACHMENTS", "4"); err != nil {
		return nil, err
	}
	if cfg.WatermarkCap, err = getEnvInt("WATERMARK_CAP", "20"); err != nil {
		return nil, err
	}
	if cfg.MediaRetries, err = getEnvInt("MEDIA_RETRIES", "3"); err != nil {
		return nil, err
	}
	if cfg.RateLimitRetries, err = getEnvInt("RATE_LIMIT_RETRIES", "3"); err != nil {
		return nil, err
	}
	if cfg.ScrollStallThreshold, err = getEnvInt("SCROLL_STALL_THRESHOLD", "4"); err != nil {
		return nil, err
	}

	if cfg.MediaTimeout, err = getEnvDuration("MEDIA_TIMEOUT", "20s"); err != nil {
		return nil, err
	}
	if cfg.MediaRetryDelay, err = getEnvDuration("MEDIA_RETRY_DELAY", "5s"); err != nil {
		return nil, err
	}
	if cfg.PacingDelay, err = getEnvDuration("PACING_DELAY", "15s"); err != nil {
		return nil, err
	}
	if cfg.RateLimitCooldown, err = getEnvDuration("RATE_LIMIT_COOLDOWN", "5m"); err != nil {
		return nil, err
	}
	if cfg.ScrollWait, err = getEnvDuration("SCROLL_WAIT", "5s"); err != nil {
		return nil, err
	}
	if cfg.ScanCeiling, err = getEnvDuration("SCAN_CEILING", "10m"); err != nil {
		return nil, err
	}
	if cfg.WatchInterval, err = getEnvDuration("WATCH_INTERVAL", "30m"); err != nil {
		return nil, err
	}

	// Each watermark mode records one representation of the boundary;
	// the default policy is the one that reads that representation back.
	if cfg.NoveltyPolicy == "" {
		switch cfg.WatermarkMode {
		case "ids":
			cfg.NoveltyPolicy = "identity"
		case "timestamps":
			cfg.NoveltyPolicy = "timestamp"
		case "derived":
			cfg.NoveltyPolicy = "minute"
		}
	}

	return cfg, nil
}

// Validate checks configuration every posting mode needs.
func (c *Config) Validate() error {
	if c.MastodonAPIURL == "" {
		return fmt.Errorf("MASTODON_API_URL is required")
	}
	if c.MastodonAccessToken == "" {
		return fmt.Errorf("MASTODON_ACCESS_TOKEN is required")
	}
	switch c.WatermarkMode {
	case "ids", "timestamps", "derived":
	default:
		return fmt.Errorf("invalid WATERMARK_MODE: %s (must be 'ids', 'timestamps' or 'derived')", c.WatermarkMode)
	}
	if c.WatermarkMode != "derived" && c.WatermarkPath == "" {
		return fmt.Errorf("WATERMARK_PATH is required for mode %s", c.WatermarkMode)
	}

	// A policy that reads a field the mode never writes filters nothing
	// and re-publishes every item on every run. The derived footer only
	// carries minute precision, so full-precision comparison is out too.
	ok := false
	switch c.WatermarkMode {
	case "ids":
		ok = c.NoveltyPolicy == "identity"
	case "timestamps":
		ok = c.NoveltyPolicy == "timestamp" || c.NoveltyPolicy == "minute"
	case "derived":
		ok = c.NoveltyPolicy == "minute" || c.NoveltyPolicy == "fingerprint"
	}
	if !ok {
		return fmt.Errorf("NOVELTY_POLICY %q cannot read what WATERMARK_MODE %q records", c.NoveltyPolicy, c.WatermarkMode)
	}
	return nil
}

// ValidateForFeed checks configuration needed for feed-mode runs.
func (c *Config) ValidateForFeed() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.FeedURL == "" {
		return fmt.Errorf("FEED_URL is required for feed runs")
	}
	return nil
}

// ValidateForScan checks configuration needed for timeline-mode runs.
func (c *Config) ValidateForScan() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.TimelineURL == "" {
		return fmt.Errorf("TIMELINE_URL is required for timeline scans")
	}
	if c.RenderServiceURL == "" {
		return fmt.Errorf("RENDER_SERVICE_URL is required for timeline scans")
	}
	return nil
}

// ValidateForHistory checks configuration needed for the history command.
func (c *Config) ValidateForHistory() error {
	if c.HistoryDBPath == "" {
		return fmt.Errorf("HISTORY_DB_PATH is required for history")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key, defaultVal string) (int, error) {
	n, err := strconv.Atoi(getEnv(key, defaultVal))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key, defaultVal string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultVal))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
