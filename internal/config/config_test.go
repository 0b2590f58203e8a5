package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env and restore after test
	origEnv := os.Environ()
	t.Cleanup(func() {
		os.Clearenv()
		for _, e := range origEnv {
			for i := 0; i < len(e); i++ {
				if e[i] == '=' {
					os.Setenv(e[:i], e[i+1:])
					break
				}
			}
		}
	})

	t.Run("defaults", func(t *testing.T) {
		os.Clearenv()
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "public", cfg.PostVisibility)
		assert.Equal(t, "ids", cfg.WatermarkMode)
		assert.Equal(t, "saved_entries.json", cfg.WatermarkPath)
		assert.Equal(t, "identity", cfg.NoveltyPolicy)
		assert.Equal(t, 500, cfg.MaxPostLength)
		assert.Equal(t, 4, cfg.MaxAttachments)
		assert.Equal(t, 20, cfg.WatermarkCap)
		assert.Equal(t, 3, cfg.MediaRetries)
		assert.Equal(t, 20*time.Second, cfg.MediaTimeout)
		assert.Equal(t, 15*time.Second, cfg.PacingDelay)
		assert.Equal(t, 5*time.Minute, cfg.RateLimitCooldown)
		assert.Equal(t, 4, cfg.ScrollStallThreshold)
		assert.Equal(t, 10*time.Minute, cfg.ScanCeiling)
		assert.Equal(t, 30*time.Minute, cfg.WatchInterval)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("custom values", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("MASTODON_API_URL", "https://example.social")
		os.Setenv("MASTODON_ACCESS_TOKEN", "secret")
		os.Setenv("FEED_URL", "https://pages.example.com/feed.rss")
		os.Setenv("HASHTAGS", "#mirror #news")
		os.Setenv("PACING_DELAY", "60s")
		os.Setenv("WATERMARK_CAP", "50")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "https://example.social", cfg.MastodonAPIURL)
		assert.Equal(t, "secret", cfg.MastodonAccessToken)
		assert.Equal(t, "https://pages.example.com/feed.rss", cfg.FeedURL)
		assert.Equal(t, "#mirror #news", cfg.Hashtags)
		assert.Equal(t, time.Minute, cfg.PacingDelay)
		assert.Equal(t, 50, cfg.WatermarkCap)
	})

	t.Run("invalid duration", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("PACING_DELAY", "invalid")

		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "PACING_DELAY")
	})

	t.Run("invalid integer", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("MAX_ATTACHMENTS", "notanumber")

		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "MAX_ATTACHMENTS")
	})

	t.Run("default policy follows watermark mode", func(t *testing.T) {
		for mode, policy := range map[string]string{
			"ids":        "identity",
			"timestamps": "timestamp",
			"derived":    "minute",
		} {
			os.Clearenv()
			os.Setenv("WATERMARK_MODE", mode)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, policy, cfg.NoveltyPolicy, "mode %s", mode)
		}
	})

	t.Run("defaults validate as a working pair", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("MASTODON_API_URL", "https://example.social")
		os.Setenv("MASTODON_ACCESS_TOKEN", "secret")

		cfg, err := Load()
		require.NoError(t, err)
		assert.NoError(t, cfg.Validate())
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			MastodonAPIURL:      "https://example.social",
			MastodonAccessToken: "secret",
			WatermarkMode:       "ids",
			WatermarkPath:       "saved_entries.json",
			NoveltyPolicy:       "identity",
		}
	}

	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing api url", func(t *testing.T) {
		cfg := valid()
		cfg.MastodonAPIURL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing token", func(t *testing.T) {
		cfg := valid()
		cfg.MastodonAccessToken = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad watermark mode", func(t *testing.T) {
		cfg := valid()
		cfg.WatermarkMode = "psychic"
		assert.Error(t, cfg.Validate())
	})

	t.Run("derived mode needs no path", func(t *testing.T) {
		cfg := valid()
		cfg.WatermarkMode = "derived"
		cfg.WatermarkPath = ""
		cfg.NoveltyPolicy = "fingerprint"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("policy must match what the mode records", func(t *testing.T) {
		for _, tc := range []struct {
			mode   string
			policy string
			valid  bool
		}{
			{"ids", "identity", true},
			{"ids", "timestamp", false},
			{"timestamps", "timestamp", true},
			{"timestamps", "minute", true},
			{"timestamps", "identity", false},
			{"derived", "minute", true},
			{"derived", "fingerprint", true},
			{"derived", "timestamp", false},
		} {
			cfg := valid()
			cfg.WatermarkMode = tc.mode
			cfg.NoveltyPolicy = tc.policy
			err := cfg.Validate()
			if tc.valid {
				assert.NoError(t, err, "%s + %s", tc.mode, tc.policy)
			} else {
				assert.Error(t, err, "%s + %s", tc.mode, tc.policy)
			}
		}
	})

	t.Run("feed mode needs feed url", func(t *testing.T) {
		cfg := valid()
		assert.Error(t, cfg.ValidateForFeed())
		cfg.FeedURL = "https://pages.example.com/feed.rss"
		assert.NoError(t, cfg.ValidateForFeed())
	})

	t.Run("scan mode needs timeline and driver", func(t *testing.T) {
		cfg := valid()
		cfg.TimelineURL = "https://timeline.example.com/user"
		assert.Error(t, cfg.ValidateForScan())
		cfg.RenderServiceURL = "http://localhost:9222"
		assert.NoError(t, cfg.ValidateForScan())
	})
}
