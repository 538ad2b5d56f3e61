package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/heirakug/video-to-audio-converter/internal/cache"
)

// countingFetcher serves canned blobs and records how often each one was
// requested.
type countingFetcher struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	fetches map[string]int
	err     error
}

func newCountingFetcher() *countingFetcher {
	return &countingFetcher{
		blobs: map[string][]byte{
			cache.BlobEngineCode:   []byte("version: test\nverify_token: ffmpeg\n"),
			cache.BlobEngineBinary: []byte("fake-binary"),
		},
		fetches: make(map[string]int),
	}
}

func (f *countingFetcher) Fetch(_ context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetches[name]++
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.blobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFetchFailed, name)
	}
	return data, nil
}

func (f *countingFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.fetches {
		n += c
	}
	return n
}

func newTestCache(t *testing.T) *cache.Tiered {
	t.Helper()
	tc, err := cache.Open(cache.Config{Dir: t.TempDir(), Version: "test"})
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { tc.Close() })
	return tc
}

// waitForCached polls until both blobs land in the cache or the deadline
// passes; the write-through is fire-and-forget, so the test has to wait.
func waitForCached(t *testing.T, tc *cache.Tiered) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tc.HasAll() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("blobs never arrived in the cache")
}

func TestLoader_ColdCacheDownloadsAndCaches(t *testing.T) {
	tc := newTestCache(t)
	fetcher := newCountingFetcher()
	loader := NewLoader(tc, fetcher, NewMock(), filepath.Join(t.TempDir(), "assets"))

	var states []State
	loader.OnStateChange(func(s State) { states = append(states, s) })

	if err := loader.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := fetcher.total(); got != 2 {
		t.Errorf("expected exactly 2 remote fetches, got %d", got)
	}
	if loader.State() != StateReady {
		t.Errorf("state = %s, want ready", loader.State())
	}
	if len(states) < 2 || states[0] != StateLoading || states[len(states)-1] != StateReady {
		t.Errorf("unexpected state sequence: %v", states)
	}

	waitForCached(t, tc)
	if !tc.WasLoaded() {
		t.Error("status flag not recorded after successful load")
	}
}

func TestLoader_WarmCacheSkipsNetwork(t *testing.T) {
	tc := newTestCache(t)
	tc.Put(cache.BlobEngineCode, []byte("cached-code"))
	tc.Put(cache.BlobEngineBinary, []byte("cached-binary"))

	fetcher := newCountingFetcher()
	loader := NewLoader(tc, fetcher, NewMock(), filepath.Join(t.TempDir(), "assets"))

	if !loader.ShouldAutoLoad() {
		t.Error("warm cache should trigger auto-load")
	}
	if err := loader.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := fetcher.total(); got != 0 {
		t.Errorf("expected zero remote fetches on warm cache, got %d", got)
	}
	if loader.State() != StateReady {
		t.Errorf("state = %s, want ready", loader.State())
	}
}

func TestLoader_ReadyIsIdempotent(t *testing.T) {
	tc := newTestCache(t)
	fetcher := newCountingFetcher()
	mock := NewMock()
	loader := NewLoader(tc, fetcher, mock, filepath.Join(t.TempDir(), "assets"))

	if err := loader.Load(context.Background()); err != nil {
		t.Fatalf("first load: %v", err)
	}
	fetchesAfterFirst := fetcher.total()
	initsAfterFirst := mock.InitCalls

	// Second and third triggers must not refetch or reinitialize.
	for i := 0; i < 2; i++ {
		if err := loader.Load(context.Background()); err != nil {
			t.Fatalf("repeat load: %v", err)
		}
	}

	if fetcher.total() != fetchesAfterFirst {
		t.Errorf("repeat load refetched: %d -> %d", fetchesAfterFirst, fetcher.total())
	}
	if mock.InitCalls != initsAfterFirst {
		t.Errorf("repeat load reinitialized: %d -> %d", initsAfterFirst, mock.InitCalls)
	}
}

func TestLoader_ConcurrentTriggersDoNotRace(t *testing.T) {
	tc := newTestCache(t)
	fetcher := newCountingFetcher()
	loader := NewLoader(tc, fetcher, NewMock(), filepath.Join(t.TempDir(), "assets"))

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = loader.Load(context.Background())
		}(i)
	}
	wg.Wait()

	// Exactly one attempt ran the download; the losers either waited it
	// out successfully (post-Ready) or were turned away.
	if got := fetcher.total(); got != 2 {
		t.Errorf("concurrent triggers caused %d fetches, want 2", got)
	}
	for i, err := range results {
		if err != nil && !errors.Is(err, ErrAlreadyLoading) {
			t.Errorf("load %d: unexpected error %v", i, err)
		}
	}
	if loader.State() != StateReady {
		t.Errorf("state = %s, want ready", loader.State())
	}
}

func TestLoader_FetchFailureIsTerminal(t *testing.T) {
	tc := newTestCache(t)
	fetcher := newCountingFetcher()
	fetcher.err = errors.New("origin unreachable")
	loader := NewLoader(tc, fetcher, NewMock(), filepath.Join(t.TempDir(), "assets"))

	err := loader.Load(context.Background())
	if !IsLoadFailure(err) {
		t.Fatalf("expected load failure, got %v", err)
	}
	if loader.State() != StateFailed {
		t.Errorf("state = %s, want failed", loader.State())
	}
	if _, err := loader.Engine(); !errors.Is(err, ErrNotInitialized) {
		t.Error("failed loader handed out an engine")
	}

	// Retrying on the same handle must keep failing: the caller has to
	// construct a new one.
	if err := loader.Load(context.Background()); !IsLoadFailure(err) {
		t.Errorf("retry on failed loader: %v", err)
	}
	if tc.WasLoaded() {
		t.Error("status flag set despite failed load")
	}
}

func TestLoader_InitFailurePropagates(t *testing.T) {
	tc := newTestCache(t)
	mock := NewMock()
	mock.InitErr = errors.New("engine exploded")
	loader := NewLoader(tc, newCountingFetcher(), mock, filepath.Join(t.TempDir(), "assets"))

	err := loader.Load(context.Background())
	if !IsLoadFailure(err) {
		t.Fatalf("expected load failure, got %v", err)
	}
	if loader.State() != StateFailed {
		t.Errorf("state = %s, want failed", loader.State())
	}
}

func TestStateMachine_Transitions(t *testing.T) {
	sm := newStateMachine()

	if sm.state() != StateIdle {
		t.Fatalf("initial state = %s", sm.state())
	}
	if sm.transition(StateFailed) {
		t.Error("idle -> failed should be illegal")
	}
	if !sm.transition(StateLoading) {
		t.Error("idle -> loading should be legal")
	}
	if !sm.transition(StateReady) {
		t.Error("loading -> ready should be legal")
	}
	if sm.transition(StateLoading) {
		t.Error("ready -> loading should be illegal")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateLoading, "loading"},
		{StateReady, "ready"},
		{StateFailed, "failed"},
		{State(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
