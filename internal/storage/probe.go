// Package storage detects which local persistence mechanisms are usable
// before the cache layers commit to them.
package storage

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Kind identifies one of the persistence mechanisms the cache can use.
type Kind int

const (
	// KindKeyValue is the SQLite-backed key-value store.
	KindKeyValue Kind = iota
	// KindBlobDir is the durable on-disk blob cache directory.
	KindBlobDir
	// KindFlagStore is the small key=value status file.
	KindFlagStore
)

// String returns the string representation of the storage kind.
func (k Kind) String() string {
	switch k {
	case KindKeyValue:
		return "key-value-store"
	case KindBlobDir:
		return "blob-cache"
	case KindFlagStore:
		return "flag-store"
	default:
		return "unknown"
	}
}

// Paths holds the filesystem locations probed for each storage kind.
type Paths struct {
	KVPath   string // SQLite database file
	BlobDir  string // blob cache directory
	FlagPath string // status flag file
}

// IsAvailable reports whether the given storage kind can be used. It never
// returns an error and never panics: any failure during the probe counts
// as unavailable.
func IsAvailable(kind Kind, paths Paths) (available bool) {
	defer func() {
		if recover() != nil {
			available = false
		}
	}()

	switch kind {
	case KindKeyValue:
		return probeKeyValue(paths.KVPath)
	case KindBlobDir:
		return probeBlobDir(paths.BlobDir)
	case KindFlagStore:
		return probeFlagStore(paths.FlagPath)
	default:
		return false
	}
}

// probeKeyValue opens the SQLite database and verifies a trivial statement
// round-trips.
func probeKeyValue(path string) bool {
	if path == "" {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return false
	}
	defer db.Close()

	var one int
	if err := db.QueryRow("SELECT 1").Scan(&one); err != nil {
		return false
	}
	return one == 1
}

// probeBlobDir verifies the blob directory exists (or can be created) and
// that a scratch file can be written and removed.
func probeBlobDir(dir string) bool {
	if dir == "" {
		return false
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}

	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_, writeErr := f.WriteString("ok")
	closeErr := f.Close()
	removeErr := os.Remove(name)

	return writeErr == nil && closeErr == nil && removeErr == nil
}

// probeFlagStore writes a sentinel key to the flag file's directory and
// immediately removes it.
func probeFlagStore(path string) bool {
	if path == "" {
		return false
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}

	sentinel := filepath.Join(dir, ".flag-probe")
	if err := os.WriteFile(sentinel, []byte("probe"), 0o644); err != nil {
		return false
	}
	return os.Remove(sentinel) == nil
}
