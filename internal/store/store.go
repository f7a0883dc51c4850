// Package store persists the launcher's manifest cache and download history
// in a single SQLite file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// FileName is the database file created inside the cache directory.
const FileName = "launcher.db"

var ErrClosed = errors.New("store closed")

// Store wraps the launcher database. It is safe for concurrent use; all
// access is serialized through a single connection.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// CachedManifest is the last manifest body fetched from the origin.
type CachedManifest struct {
	URL       string
	Body      []byte
	ETag      string
	FetchedAt time.Time
}

// Outcome of a finished download session.
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomeFailed   Outcome = "failed"
)

// DownloadRecord is one row of download history.
type DownloadRecord struct {
	SessionID  string
	Version    string
	Outcome    Outcome
	Message    string
	Bytes      int64
	StartedAt  time.Time
	FinishedAt time.Time
}

const schema = `
	CREATE TABLE IF NOT EXISTS manifest_cache (
		url TEXT PRIMARY KEY,
		body BLOB NOT NULL,
		etag TEXT NOT NULL DEFAULT '',
		fetched_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS downloads (
		session_id TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		outcome TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		bytes INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);
`

// buildDSN creates a read-write WAL DSN for path.
func buildDSN(path string) string {
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(path),
	}
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(3000)")
	q.Set("_txlock", "immediate")
	u.RawQuery = q.Encode()
	return u.String()
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store path is empty")
	}
	//nolint:gosec // G301: cache directory needs standard permissions
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply store schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) conn() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

// LoadManifest returns the cached manifest for url; ok is false when nothing
// is cached.
func (s *Store) LoadManifest(ctx context.Context, manifestURL string) (CachedManifest, bool, error) {
	db, err := s.conn()
	if err != nil {
		return CachedManifest{}, false, err
	}
	var (
		m         = CachedManifest{URL: manifestURL}
		fetchedAt string
	)
	err = db.QueryRowContext(ctx, `
		SELECT body, etag, fetched_at
		FROM manifest_cache
		WHERE url = ?
	`, manifestURL).Scan(&m.Body, &m.ETag, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CachedManifest{}, false, nil
	}
	if err != nil {
		return CachedManifest{}, false, fmt.Errorf("query manifest cache: %w", err)
	}
	m.FetchedAt = parseTime(fetchedAt)
	return m, true, nil
}

// SaveManifest replaces the cached manifest for m.URL.
func (s *Store) SaveManifest(ctx context.Context, m CachedManifest) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if m.FetchedAt.IsZero() {
		m.FetchedAt = s.now()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO manifest_cache (url, body, etag, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			body = excluded.body,
			etag = excluded.etag,
			fetched_at = excluded.fetched_at
	`, m.URL, m.Body, m.ETag, formatTime(m.FetchedAt))
	if err != nil {
		return fmt.Errorf("save manifest cache: %w", err)
	}
	return nil
}

// TouchManifest marks the cached manifest as revalidated at fetchedAt.
func (s *Store) TouchManifest(ctx context.Context, manifestURL string, fetchedAt time.Time) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `UPDATE manifest_cache SET fetched_at = ? WHERE url = ?`,
		formatTime(fetchedAt), manifestURL); err != nil {
		return fmt.Errorf("touch manifest cache: %w", err)
	}
	return nil
}

// RecordDownload stores the outcome of a download session. Recording the same
// session twice keeps the latest outcome.
func (s *Store) RecordDownload(ctx context.Context, rec DownloadRecord) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = s.now()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = rec.FinishedAt
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO downloads (session_id, version, outcome, message, bytes, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			version = excluded.version,
			outcome = excluded.outcome,
			message = excluded.message,
			bytes = excluded.bytes,
			finished_at = excluded.finished_at
	`, rec.SessionID, rec.Version, string(rec.Outcome), rec.Message, rec.Bytes,
		formatTime(rec.StartedAt), formatTime(rec.FinishedAt))
	if err != nil {
		return fmt.Errorf("record download: %w", err)
	}
	return nil
}

// RecentDownloads returns up to limit history rows, newest first.
func (s *Store) RecentDownloads(ctx context.Context, limit int) ([]DownloadRecord, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, version, outcome, message, bytes, started_at, finished_at
		FROM downloads
		ORDER BY finished_at DESC, session_id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query downloads: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []DownloadRecord
	for rows.Next() {
		var (
			rec               DownloadRecord
			outcome           string
			started, finished string
		)
		if err := rows.Scan(&rec.SessionID, &rec.Version, &outcome, &rec.Message, &rec.Bytes, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		rec.Outcome = Outcome(outcome)
		rec.StartedAt = parseTime(started)
		rec.FinishedAt = parseTime(finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
