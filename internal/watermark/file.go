package watermark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"mastobridge/internal/source"
)

// legacyObject is the single-timestamp file form some deployments use.
type legacyObject struct {
	LastPublishedDate string `json:"last_published_date"`
}

// FileStore keeps the watermark in a small local JSON file: an array of
// item ids, an array of ISO-8601 timestamps, or an object with a single
// last_published_date, depending on mode.
type FileStore struct {
	path string
	mode Mode
	cap  int

	current *Watermark
}

// NewFileStore creates a file-backed watermark store. Cap bounds the
// ledger length; zero means DefaultCap.
func NewFileStore(path string, mode Mode, cap int) *FileStore {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &FileStore{path: path, mode: mode, cap: cap}
}

// Load reads the persisted ledger. Any unreadable or corrupt state is
// logged and treated as an empty watermark; the next successful Advance
// overwrites it.
func (s *FileStore) Load(_ context.Context) *Watermark {
	w := &Watermark{}
	s.current = w

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("watermark file unreadable, starting empty", "path", s.path, "error", err)
		}
		return w
	}

	if err := s.decode(data, w); err != nil {
		slog.Warn("watermark file corrupt, starting empty", "path", s.path, "error", err)
		*w = Watermark{}
	}
	return w
}

// Advance records item as published and persists the ledger immediately.
func (s *FileStore) Advance(ctx context.Context, item source.Item) error {
	if s.current == nil {
		s.Load(ctx)
	}

	switch s.mode {
	case ModeIDs:
		if !item.HasID() {
			return fmt.Errorf("advance: item has no id (mode %q)", s.mode)
		}
		s.current.IDs = append(s.current.IDs, item.ID)
		if len(s.current.IDs) > s.cap {
			s.current.IDs = s.current.IDs[len(s.current.IDs)-s.cap:]
		}
	case ModeTimestamps:
		s.current.Times = append(s.current.Times, item.PublishedAt)
		if len(s.current.Times) > s.cap {
			s.current.Times = s.current.Times[len(s.current.Times)-s.cap:]
		}
	default:
		return fmt.Errorf("advance: unsupported mode %q", s.mode)
	}

	return s.save()
}

func (s *FileStore) decode(data []byte, w *Watermark) error {
	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		// Fall back to the object form.
		var obj legacyObject
		if objErr := json.Unmarshal(data, &obj); objErr != nil || obj.LastPublishedDate == "" {
			return err
		}
		ts, parseErr := time.Parse(time.RFC3339, obj.LastPublishedDate)
		if parseErr != nil {
			return fmt.Errorf("parse last_published_date: %w", parseErr)
		}
		w.Times = []time.Time{ts}
		return nil
	}

	switch s.mode {
	case ModeIDs:
		w.IDs = entries
	case ModeTimestamps:
		times := make([]time.Time, 0, len(entries))
		for _, entry := range entries {
			ts, err := time.Parse(time.RFC3339, entry)
			if err != nil {
				return fmt.Errorf("parse timestamp %q: %w", entry, err)
			}
			times = append(times, ts)
		}
		w.Times = times
	default:
		return fmt.Errorf("decode: unsupported mode %q", s.mode)
	}
	return nil
}

func (s *FileStore) save() error {
	var payload any
	switch s.mode {
	case ModeIDs:
		payload = s.current.IDs
	case ModeTimestamps:
		entries := make([]string, len(s.current.Times))
		for i, t := range s.current.Times {
			entries[i] = t.Format(time.RFC3339)
		}
		payload = entries
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal watermark: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write watermark: %w", err)
	}
	return nil
}
