package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mastobridge/internal/retry"
)

type fakeUploader struct {
	uploads []string // mime types, in call order
	fail    map[int]bool
	calls   int
}

func (f *fakeUploader) UploadMedia(_ context.Context, data []byte, mimeType, _ string) (string, error) {
	f.calls++
	f.uploads = append(f.uploads, mimeType)
	if f.fail[f.calls] {
		return "", assert.AnError
	}
	return "attachment-" + mimeType, nil
}

func noSleepPolicy(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, Delay: 5 * time.Second, Sleep: func(time.Duration) {}}
}

func TestPipeline_UploadAll(t *testing.T) {
	t.Run("uploads every good url", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("bytes"))
		}))
		defer server.Close()

		up := &fakeUploader{}
		p := New(Config{Uploader: up, Policy: noSleepPolicy(3)})

		ids := p.UploadAll(context.Background(), []string{
			server.URL + "/a.jpg",
			server.URL + "/b.png",
		})
		require.Len(t, ids, 2)
		assert.Equal(t, []string{"image/jpeg", "image/png"}, up.uploads)
	})

	t.Run("one bad url never aborts the rest", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/broken.jpg" {
				hits.Add(1)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte("bytes"))
		}))
		defer server.Close()

		up := &fakeUploader{}
		p := New(Config{Uploader: up, Policy: noSleepPolicy(3)})

		ids := p.UploadAll(context.Background(), []string{
			server.URL + "/a.jpg",
			server.URL + "/broken.jpg",
			server.URL + "/c.jpg",
		})
		assert.Len(t, ids, 2)
		assert.Equal(t, int32(3), hits.Load(), "broken URL retried exactly MaxAttempts times")
	})

	t.Run("upload failure drops that attachment only", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("bytes"))
		}))
		defer server.Close()

		up := &fakeUploader{fail: map[int]bool{2: true}}
		p := New(Config{Uploader: up, Policy: noSleepPolicy(1)})

		ids := p.UploadAll(context.Background(), []string{
			server.URL + "/a.jpg",
			server.URL + "/b.jpg",
			server.URL + "/c.jpg",
		})
		assert.Len(t, ids, 2)
	})

	t.Run("empty input produces no attachments", func(t *testing.T) {
		p := New(Config{Uploader: &fakeUploader{}, Policy: noSleepPolicy(1)})
		assert.Empty(t, p.UploadAll(context.Background(), nil))
	})
}

func TestGuessMIME(t *testing.T) {
	tests := []struct {
		name string
		url  string
		data []byte
		want string
	}{
		{"jpeg extension", "https://cdn.example.com/photo.jpg?name=small", nil, "image/jpeg"},
		{"png extension", "https://cdn.example.com/pic.png", nil, "image/png"},
		{"mp4 extension", "https://cdn.example.com/clip.mp4", nil, "video/mp4"},
		{"no extension sniffs content", "https://cdn.example.com/media", []byte("GIF89a..."), "image/gif"},
		{"unknown falls back to octet-stream", "https://cdn.example.com/blob", []byte{0x00, 0x01}, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, guessMIME(tt.url, tt.data), tt.want)
		})
	}
}
