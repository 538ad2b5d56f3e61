package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/heirakug/video-to-audio-converter/internal/cache"
)

// Loader drives Idle -> Loading -> Ready (or Failed) for one engine
// handle. It resolves the two engine blobs from the tiered cache, falls
// back to the remote origin on any miss, and writes fresh downloads back
// through the cache without letting cache failures fail the load.
type Loader struct {
	cache    *cache.Tiered
	fetcher  Fetcher
	engine   Engine
	assetDir string

	mu      sync.Mutex
	machine *stateMachine
	lastErr error

	// inFlight closes the race between two load triggers arriving
	// before either finishes: only the one that wins the swap may enter
	// Loading.
	inFlight atomic.Bool

	onState func(State)
}

// NewLoader wires a loader around an engine handle. assetDir is where
// resolved blobs are materialized as files for Initialize.
func NewLoader(tc *cache.Tiered, fetcher Fetcher, eng Engine, assetDir string) *Loader {
	return &Loader{
		cache:    tc,
		fetcher:  fetcher,
		engine:   eng,
		assetDir: assetDir,
		machine:  newStateMachine(),
	}
}

// OnStateChange registers a callback invoked after every state change.
func (l *Loader) OnStateChange(fn func(State)) {
	l.onState = fn
}

// State returns the loader's current state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.machine.state()
}

// Err returns the failure that moved the loader to Failed, if any.
func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Engine returns the engine handle once the loader is Ready.
func (l *Loader) Engine() (Engine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.machine.state() != StateReady {
		return nil, ErrNotInitialized
	}
	return l.engine, nil
}

// ShouldAutoLoad reports whether startup should load without a user
// trigger: either both blobs are version-valid in the cache, or the
// status flag hints a previous successful load.
func (l *Loader) ShouldAutoLoad() bool {
	return l.cache.HasAll() || l.cache.WasLoaded()
}

// Load brings the engine up. It is safe to call repeatedly: once Ready it
// returns immediately without refetching or reinitializing, and a second
// concurrent call while a load is in flight is rejected rather than
// racing the first.
func (l *Loader) Load(ctx context.Context) error {
	// Re-entrant guard: an initialized handle short-circuits to Ready.
	if l.engine.Initialized() {
		l.mu.Lock()
		if l.machine.state() != StateReady {
			l.machine.transition(StateReady)
			l.notifyLocked()
		}
		l.mu.Unlock()
		return nil
	}

	if !l.inFlight.CompareAndSwap(false, true) {
		return ErrAlreadyLoading
	}
	defer l.inFlight.Store(false)

	l.mu.Lock()
	switch l.machine.state() {
	case StateReady:
		l.mu.Unlock()
		return nil
	case StateFailed:
		l.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrLoadFailed, l.lastErr)
	}
	l.machine.transition(StateLoading)
	l.notifyLocked()
	l.mu.Unlock()

	assets, err := l.resolveAssets(ctx)
	if err == nil {
		err = l.engine.Initialize(ctx, assets)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil {
		l.lastErr = err
		l.machine.transition(StateFailed)
		l.notifyLocked()
		// Propagated, not swallowed: the caller decides what to show.
		return fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	l.machine.transition(StateReady)
	l.cache.MarkLoaded()
	l.notifyLocked()
	return nil
}

// resolveAssets produces the two asset files, from cache when both blobs
// are present at the current version, otherwise from the remote origin.
func (l *Loader) resolveAssets(ctx context.Context) (Assets, error) {
	code, codeErr := l.cache.Get(cache.BlobEngineCode)
	binary, binErr := l.cache.Get(cache.BlobEngineBinary)

	if codeErr == nil && binErr == nil {
		log.Debug("engine blobs resolved from cache", "version", l.cache.Version())
		return l.materialize(code, binary)
	}

	// Any miss means both blobs come from the origin: a half-cached
	// pair of mismatched builds is worse than a full download.
	log.Info("engine blobs not cached, downloading", "version", l.cache.Version())

	code, err := l.fetcher.Fetch(ctx, cache.BlobEngineCode)
	if err != nil {
		return Assets{}, err
	}
	binary, err = l.fetcher.Fetch(ctx, cache.BlobEngineBinary)
	if err != nil {
		return Assets{}, err
	}

	// Best-effort write-through. The load never waits on it or fails
	// because of it; the cache waits for it on Close instead.
	l.cache.PutAsync(cache.BlobEngineCode, code)
	l.cache.PutAsync(cache.BlobEngineBinary, binary)

	return l.materialize(code, binary)
}

// materialize writes the blob bytes into the asset directory and returns
// their paths.
func (l *Loader) materialize(code, binary []byte) (Assets, error) {
	if err := os.MkdirAll(l.assetDir, 0o755); err != nil {
		return Assets{}, fmt.Errorf("create asset dir: %w", err)
	}

	assets := Assets{
		CodePath:   filepath.Join(l.assetDir, cache.BlobEngineCode),
		BinaryPath: filepath.Join(l.assetDir, cache.BlobEngineBinary),
	}

	if err := os.WriteFile(assets.CodePath, code, 0o644); err != nil {
		return Assets{}, fmt.Errorf("materialize %s: %w", cache.BlobEngineCode, err)
	}
	if err := os.WriteFile(assets.BinaryPath, binary, 0o755); err != nil {
		return Assets{}, fmt.Errorf("materialize %s: %w", cache.BlobEngineBinary, err)
	}

	return assets, nil
}

func (l *Loader) notifyLocked() {
	if l.onState != nil {
		l.onState(l.machine.state())
	}
}

// IsLoadFailure reports whether err came out of a failed load attempt.
func IsLoadFailure(err error) bool {
	return errors.Is(err, ErrLoadFailed)
}
