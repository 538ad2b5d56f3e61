package cache

import (
	"errors"
	"time"
)

// Blob names recognized by the cache. At most one live record exists per
// name per storage tier.
const (
	BlobEngineCode   = "engine-code"
	BlobEngineBinary = "engine-binary"
)

// Names lists every blob the engine loader depends on.
var Names = []string{BlobEngineCode, BlobEngineBinary}

// Common errors for cache operations.
var (
	// ErrCacheMiss is returned when no version-matching record exists.
	ErrCacheMiss = errors.New("cache miss")

	// ErrUnknownBlob is returned for blob names outside the fixed set.
	ErrUnknownBlob = errors.New("unknown blob name")

	// ErrTierUnavailable is returned when a tier's backing store cannot
	// be reached.
	ErrTierUnavailable = errors.New("storage tier unavailable")
)

// Record is one stored blob together with its metadata. A record is only
// considered valid when its Version equals the currently configured
// version; stale-version records are treated as absent.
type Record struct {
	Name     string
	Data     []byte
	Version  string
	StoredAt time.Time
}

// Tier is the contract each storage tier implements. Implementations are
// independent failure domains: an error from one tier never implies
// anything about another.
type Tier interface {
	// Get returns the record stored under name, or ErrCacheMiss.
	// Version gating happens above the tier, in Tiered.
	Get(name string) (*Record, error)

	// Put stores a record under its name, replacing any previous one.
	Put(rec *Record) error

	// Delete removes the record stored under name. Deleting an absent
	// record is not an error.
	Delete(name string) error

	// Close releases the tier's resources.
	Close() error
}

// Config holds configuration for the tiered cache.
type Config struct {
	// Dir is the cache root. The KV database, blob directory, status
	// flag file, and the cross-process lock all live under it.
	Dir string

	// Version is the engine version tag active for this process. Records
	// carrying any other version are invisible to Get.
	Version string

	// CompressionLevel is the zstd level for the blob tier. Zero
	// disables compression.
	CompressionLevel int
}
