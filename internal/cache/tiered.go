package cache

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"

	"github.com/heirakug/video-to-audio-converter/internal/storage"
)

// Tiered coordinates the key-value and blob tiers plus the status flag.
// Reads prefer the key-value tier because it keeps inspectable metadata
// beside the bytes; the blob tier is the fallback. All writes are
// best-effort: caching is an optimization, never a correctness
// requirement.
type Tiered struct {
	cfg  Config
	kv   Tier // nil when the tier is unavailable
	blob Tier // nil when the tier is unavailable
	flag *FlagStore
	lock *flock.Flock

	mu   sync.Mutex
	puts sync.WaitGroup
}

// Open probes the storage mechanisms under cfg.Dir and wires up whichever
// tiers are usable. It fails only when no tier at all can be opened.
func Open(cfg Config) (*Tiered, error) {
	paths := storage.Paths{
		KVPath:   filepath.Join(cfg.Dir, "engine-cache.db"),
		BlobDir:  filepath.Join(cfg.Dir, "blobs"),
		FlagPath: filepath.Join(cfg.Dir, "status"),
	}

	t := &Tiered{
		cfg:  cfg,
		flag: NewFlagStore(paths.FlagPath),
	}

	// Serialize cache access across processes. Best-effort: a failed
	// lock downgrades to unsynchronized access rather than failing open.
	t.lock = flock.New(filepath.Join(cfg.Dir, "cache.lock"))
	if locked, err := t.lock.TryLock(); err != nil || !locked {
		log.Warn("cache lock not acquired; continuing unlocked", "err", err)
		t.lock = nil
	}

	if storage.IsAvailable(storage.KindKeyValue, paths) {
		kv, err := OpenKVStore(cfg.Dir)
		if err != nil {
			log.Warn("key-value tier unavailable", "err", err)
		} else {
			t.kv = kv
		}
	}

	if storage.IsAvailable(storage.KindBlobDir, paths) {
		blob, err := OpenBlobStore(paths.BlobDir, cfg.CompressionLevel)
		if err != nil {
			log.Warn("blob tier unavailable", "err", err)
		} else {
			t.blob = blob
		}
	}

	if t.kv == nil && t.blob == nil {
		return nil, fmt.Errorf("open cache at %s: %w", cfg.Dir, ErrTierUnavailable)
	}

	return t, nil
}

// Get returns the bytes stored under name, or ErrCacheMiss when neither
// tier yields a record matching the current version. The read order is
// fixed: key-value first, then blob.
func (t *Tiered) Get(name string) ([]byte, error) {
	if !knownBlob(name) {
		return nil, ErrUnknownBlob
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, tier := range []Tier{t.kv, t.blob} {
		if tier == nil {
			continue
		}
		rec, err := tier.Get(name)
		if err != nil {
			continue
		}
		if rec.Version != t.cfg.Version {
			// Stale-version records are treated as absent.
			log.Debug("stale cache record",
				"blob", name, "have", rec.Version, "want", t.cfg.Version)
			continue
		}
		return rec.Data, nil
	}

	return nil, ErrCacheMiss
}

// Put stores the bytes under name in both tiers. The tier writes run
// concurrently and independently: failure in one never blocks or fails
// the other, and Put itself never returns an error to the caller.
func (t *Tiered) Put(name string, data []byte) {
	if !knownBlob(name) {
		log.Error("refusing to cache unknown blob", "blob", name)
		return
	}

	rec := &Record{
		Name:     name,
		Data:     data,
		Version:  t.cfg.Version,
		StoredAt: time.Now(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var wg sync.WaitGroup
	for label, tier := range map[string]Tier{"kv": t.kv, "blob": t.blob} {
		if tier == nil {
			continue
		}
		wg.Add(1)
		go func(label string, tier Tier) {
			defer wg.Done()
			if err := tier.Put(rec); err != nil {
				log.Warn("cache write failed", "tier", label, "blob", name, "err", err)
			}
		}(label, tier)
	}
	wg.Wait()
}

// PutAsync stores the bytes without making the caller wait. The write is
// registered before this returns, so a later Close still waits for it.
func (t *Tiered) PutAsync(name string, data []byte) {
	t.puts.Add(1)
	go func() {
		defer t.puts.Done()
		t.Put(name, data)
	}()
}

// Clear removes all records from both tiers and drops the status flag.
// Every failure is absorbed independently so one broken tier cannot stop
// the others from being cleared.
func (t *Tiered) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, name := range Names {
		if t.kv != nil {
			if err := t.kv.Delete(name); err != nil {
				log.Warn("kv clear failed", "blob", name, "err", err)
			}
		}
		if t.blob != nil {
			if err := t.blob.Delete(name); err != nil {
				log.Warn("blob clear failed", "blob", name, "err", err)
			}
		}
	}

	if err := t.flag.Clear(); err != nil {
		log.Warn("status flag clear failed", "err", err)
	}
}

// HasAll reports whether every required blob is present under the current
// version.
func (t *Tiered) HasAll() bool {
	for _, name := range Names {
		if _, err := t.Get(name); err != nil {
			return false
		}
	}
	return true
}

// MarkLoaded records a successful engine load in the status flag.
func (t *Tiered) MarkLoaded() {
	if err := t.flag.MarkLoaded(t.cfg.Version); err != nil {
		log.Warn("status flag write failed", "err", err)
	}
}

// WasLoaded reports whether a previous session loaded the engine at the
// currently configured version. A hint only.
func (t *Tiered) WasLoaded() bool {
	version, loaded := t.flag.WasLoaded()
	return loaded && version == t.cfg.Version
}

// Version returns the version tag this cache gates on.
func (t *Tiered) Version() string {
	return t.cfg.Version
}

// Entry describes one cached blob for status reporting.
type Entry struct {
	Name     string
	Tier     string
	Version  string
	Size     int64
	StoredAt time.Time
}

// Entries returns the records present in each tier, including
// stale-version ones, for the cache status command.
func (t *Tiered) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var entries []Entry
	for _, tp := range []struct {
		label string
		tier  Tier
	}{{"kv", t.kv}, {"blob", t.blob}} {
		if tp.tier == nil {
			continue
		}
		for _, name := range Names {
			rec, err := tp.tier.Get(name)
			if err != nil {
				continue
			}
			entries = append(entries, Entry{
				Name:     name,
				Tier:     tp.label,
				Version:  rec.Version,
				Size:     int64(len(rec.Data)),
				StoredAt: rec.StoredAt,
			})
		}
	}
	return entries
}

// Close waits for outstanding async writes, then releases both tiers
// and the cross-process lock.
func (t *Tiered) Close() error {
	t.puts.Wait()

	t.mu.Lock()
	defer t.mu.Unlock()

	var firstErr error
	for _, tier := range []Tier{t.kv, t.blob} {
		if tier == nil {
			continue
		}
		if err := tier.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if t.lock != nil {
		if err := t.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func knownBlob(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}
