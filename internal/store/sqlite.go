package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // registers "sqlite" (pure Go)

	"grokcapture/internal/logging"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"
	DriverCgo     = "sqlite3"
)

// SQLiteStore persists the key-value mapping and capture history in SQLite.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	path   string
	driver string
}

// OpenSQLite opens (creating if needed) the database at path with the given driver.
func OpenSQLite(driver, path string) (*SQLiteStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "OpenSQLite")
	defer timer.Stop()

	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverCgo {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &SQLiteStore{db: db, path: path, driver: driver}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	logging.Store("Opened %s store at %s", driver, path)
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS captures (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		filename TEXT NOT NULL,
		image_ref TEXT NOT NULL,
		prompt TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		saved_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_captures_session ON captures(session_id, saved_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.path }

// Get implements Backend.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements Backend. The write is committed before Set returns.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Capture is one persisted artifact.
type Capture struct {
	ID        string
	SessionID string
	Sequence  int
	Filename  string
	ImageRef  string
	Prompt    string
	Attempts  int
	SavedAt   time.Time
}

// RecordCapture appends a capture row. An empty ID is filled with a new UUID.
func (s *SQLiteStore) RecordCapture(ctx context.Context, c Capture) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.SavedAt.IsZero() {
		c.SavedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO captures (id, session_id, sequence, filename, image_ref, prompt, attempts, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SessionID, c.Sequence, c.Filename, c.ImageRef, c.Prompt, c.Attempts, c.SavedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record capture %s: %w", c.Filename, err)
	}
	logging.StoreDebug("Recorded capture %s (%s)", c.Filename, c.ID)
	return nil
}

// ListCaptures returns captures newest first. An empty sessionID lists all sessions;
// limit <= 0 means 100.
func (s *SQLiteStore) ListCaptures(ctx context.Context, sessionID string, limit int) ([]Capture, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id, session_id, sequence, filename, image_ref, prompt, attempts, saved_at
		FROM captures`
	args := []interface{}{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY saved_at DESC, sequence DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query captures: %w", err)
	}
	defer rows.Close()

	var out []Capture
	for rows.Next() {
		var c Capture
		var savedAt int64
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Sequence, &c.Filename, &c.ImageRef, &c.Prompt, &c.Attempts, &savedAt); err != nil {
			return nil, fmt.Errorf("scan capture row: %w", err)
		}
		c.SavedAt = time.UnixMilli(savedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}
