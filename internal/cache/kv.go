package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// KVStore is the preferred cache tier, backed by SQLite. It keeps the
// version tag and timestamp as real columns beside the bytes so the cache
// contents stay inspectable with any sqlite client.
type KVStore struct {
	db   *sql.DB
	path string
}

const kvSchema = `
CREATE TABLE IF NOT EXISTS engine_blobs (
    name      TEXT PRIMARY KEY,
    data      BLOB NOT NULL,
    version   TEXT NOT NULL,
    stored_at TEXT NOT NULL
)`

// OpenKVStore initializes or connects to the blob database under dir.
func OpenKVStore(dir string) (*KVStore, error) {
	dbPath := filepath.Join(dir, "engine-cache.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(kvSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &KVStore{db: db, path: dbPath}, nil
}

// Get returns the record stored under name.
func (s *KVStore) Get(name string) (*Record, error) {
	row := s.db.QueryRow(
		`SELECT data, version, stored_at FROM engine_blobs WHERE name = ?`, name)

	rec := &Record{Name: name}
	var storedAt string
	if err := row.Scan(&rec.Data, &rec.Version, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("query blob %q: %w", name, err)
	}

	ts, err := time.Parse(time.RFC3339Nano, storedAt)
	if err != nil {
		// Treat a mangled timestamp as a corrupt record.
		return nil, ErrCacheMiss
	}
	rec.StoredAt = ts

	return rec, nil
}

// Put stores a record, replacing any previous record under the same name.
func (s *KVStore) Put(rec *Record) error {
	_, err := s.db.Exec(
		`INSERT INTO engine_blobs (name, data, version, stored_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(name) DO UPDATE SET
             data = excluded.data,
             version = excluded.version,
             stored_at = excluded.stored_at`,
		rec.Name,
		rec.Data,
		rec.Version,
		rec.StoredAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert blob %q: %w", rec.Name, err)
	}
	return nil
}

// Delete removes the record stored under name.
func (s *KVStore) Delete(name string) error {
	if _, err := s.db.Exec(`DELETE FROM engine_blobs WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete blob %q: %w", name, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *KVStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
