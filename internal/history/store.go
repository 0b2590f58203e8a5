package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

// Publish is one recorded successful publish.
type Publish struct {
	ID              int64
	RunID           string
	ItemID          string
	StatusID        string
	StatusURL       string
	ItemPublishedAt time.Time
	PostedAt        time.Time
}

// Store records publishes in a local SQLite database. It is an optional
// audit trail: the pipeline works without it and never fails a run on a
// history write.
type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// Open opens (or creates) the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &Store{
		db: db,
		sb: sq.StatementBuilder.RunWith(db),
	}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS publishes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			item_id TEXT NOT NULL DEFAULT '',
			status_id TEXT NOT NULL,
			status_url TEXT NOT NULL DEFAULT '',
			item_published_at TIMESTAMP NOT NULL,
			posted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create publishes table: %w", err)
	}
	return nil
}

// RecordPublish appends one publish row.
func (s *Store) RecordPublish(ctx context.Context, rec Publish) error {
	postedAt := rec.PostedAt
	if postedAt.IsZero() {
		postedAt = time.Now().UTC()
	}

	_, err := s.sb.Insert("publishes").
		Columns("run_id", "item_id", "status_id", "status_url", "item_published_at", "posted_at").
		Values(rec.RunID, rec.ItemID, rec.StatusID, rec.StatusURL,
			rec.ItemPublishedAt.UTC().Format(time.RFC3339), postedAt.Format(time.RFC3339)).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("record publish: %w", err)
	}
	return nil
}

// Recent returns the most recent publishes, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Publish, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.sb.Select("id", "run_id", "item_id", "status_id", "status_url",
		"item_published_at", "posted_at").
		From("publishes").
		OrderBy("id DESC").
		Limit(uint64(limit)).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query publishes: %w", err)
	}
	defer rows.Close()

	var records []Publish
	for rows.Next() {
		var rec Publish
		var itemPublished, posted string
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.ItemID, &rec.StatusID,
			&rec.StatusURL, &itemPublished, &posted); err != nil {
			return nil, fmt.Errorf("scan publish: %w", err)
		}
		rec.ItemPublishedAt, _ = time.Parse(time.RFC3339, itemPublished)
		rec.PostedAt, _ = time.Parse(time.RFC3339, posted)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountForRun returns how many publishes the given run recorded.
func (s *Store) CountForRun(ctx context.Context, runID string) (int, error) {
	var count int
	err := s.sb.Select("COUNT(*)").
		From("publishes").
		Where(sq.Eq{"run_id": runID}).
		QueryRowContext(ctx).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count publishes: %w", err)
	}
	return count, nil
}
