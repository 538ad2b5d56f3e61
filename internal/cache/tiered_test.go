package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func openTestCache(t *testing.T, version string) *Tiered {
	t.Helper()

	tc, err := Open(Config{
		Dir:              t.TempDir(),
		Version:          version,
		CompressionLevel: 3,
	})
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { tc.Close() })
	return tc
}

func TestTiered_RoundTrip(t *testing.T) {
	tc := openTestCache(t, "0.12.10")

	payload := bytes.Repeat([]byte{0xAB, 0xCD}, 4096)
	tc.Put(BlobEngineBinary, payload)

	got, err := tc.Get(BlobEngineBinary)
	if err != nil {
		t.Fatalf("get after put: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("round-trip mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestTiered_VersionGating(t *testing.T) {
	dir := t.TempDir()

	older, err := Open(Config{Dir: dir, Version: "0.11.0"})
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	older.Put(BlobEngineCode, []byte("presets"))
	if err := older.Close(); err != nil {
		t.Fatalf("close cache: %v", err)
	}

	// Same directory, bumped version: intact bytes must read as absent.
	newer, err := Open(Config{Dir: dir, Version: "0.12.10"})
	if err != nil {
		t.Fatalf("reopen cache: %v", err)
	}
	defer newer.Close()

	if _, err := newer.Get(BlobEngineCode); err != ErrCacheMiss {
		t.Errorf("expected ErrCacheMiss for stale version, got %v", err)
	}
}

func TestTiered_ClearRemovesEverything(t *testing.T) {
	tc := openTestCache(t, "0.12.10")

	tc.Put(BlobEngineCode, []byte("code"))
	tc.Put(BlobEngineBinary, []byte("binary"))
	tc.MarkLoaded()

	tc.Clear()

	for _, name := range Names {
		if _, err := tc.Get(name); err != ErrCacheMiss {
			t.Errorf("Get(%q) after Clear = %v, want ErrCacheMiss", name, err)
		}
	}
	if tc.WasLoaded() {
		t.Error("status flag survived Clear")
	}
}

func TestTiered_BlobTierFallback(t *testing.T) {
	tc := openTestCache(t, "0.12.10")

	tc.Put(BlobEngineBinary, []byte("ffmpeg-bytes"))

	// Break the KV tier by deleting every row behind the manager's back;
	// the blob tier must still satisfy the read.
	if err := tc.kv.Delete(BlobEngineBinary); err != nil {
		t.Fatalf("kv delete: %v", err)
	}

	got, err := tc.Get(BlobEngineBinary)
	if err != nil {
		t.Fatalf("get via blob tier: %v", err)
	}
	if string(got) != "ffmpeg-bytes" {
		t.Errorf("unexpected payload from blob tier: %q", got)
	}
}

func TestTiered_TierWriteIndependence(t *testing.T) {
	tc := openTestCache(t, "0.12.10")

	// Break the key-value tier behind the manager's back. The write to
	// the blob tier must go through anyway, and Put must not panic or
	// surface the failure.
	if err := tc.kv.Close(); err != nil {
		t.Fatalf("close kv tier: %v", err)
	}
	tc.Put(BlobEngineBinary, []byte("engine bytes"))

	got, err := tc.Get(BlobEngineBinary)
	if err != nil {
		t.Fatalf("get with broken kv tier: %v", err)
	}
	if string(got) != "engine bytes" {
		t.Errorf("blob tier returned %q", got)
	}

	// Leave the broken tier out of the cleanup close.
	tc.kv = nil
}

func TestTiered_CloseWaitsForAsyncPuts(t *testing.T) {
	dir := t.TempDir()

	tc, err := Open(Config{Dir: dir, Version: "0.12.10"})
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	tc.PutAsync(BlobEngineCode, []byte("presets"))
	tc.PutAsync(BlobEngineBinary, []byte("engine bytes"))
	if err := tc.Close(); err != nil {
		t.Fatalf("close cache: %v", err)
	}

	reopened, err := Open(Config{Dir: dir, Version: "0.12.10"})
	if err != nil {
		t.Fatalf("reopen cache: %v", err)
	}
	defer reopened.Close()

	for _, name := range Names {
		if _, err := reopened.Get(name); err != nil {
			t.Errorf("Get(%q) after async put and close = %v", name, err)
		}
	}
}

func TestTiered_EntriesStableOrder(t *testing.T) {
	tc := openTestCache(t, "0.12.10")
	tc.Put(BlobEngineCode, []byte("presets"))
	tc.Put(BlobEngineBinary, []byte("engine bytes"))

	want := []string{"kv", "kv", "blob", "blob"}
	for range 10 {
		entries := tc.Entries()
		if len(entries) != len(want) {
			t.Fatalf("entries = %d, want %d", len(entries), len(want))
		}
		for i, e := range entries {
			if e.Tier != want[i] {
				t.Fatalf("entry %d in tier %q, want %q (order must not vary)", i, e.Tier, want[i])
			}
		}
	}
}

func TestTiered_HasAll(t *testing.T) {
	tc := openTestCache(t, "0.12.10")

	if tc.HasAll() {
		t.Error("HasAll on empty cache")
	}

	tc.Put(BlobEngineCode, []byte("code"))
	if tc.HasAll() {
		t.Error("HasAll with one of two blobs present")
	}

	tc.Put(BlobEngineBinary, []byte("binary"))
	if !tc.HasAll() {
		t.Error("HasAll with both blobs present")
	}
}

func TestTiered_UnknownBlobRejected(t *testing.T) {
	tc := openTestCache(t, "0.12.10")

	if _, err := tc.Get("totally-unknown"); err != ErrUnknownBlob {
		t.Errorf("expected ErrUnknownBlob, got %v", err)
	}
}

func TestTiered_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	first, err := Open(Config{Dir: dir, Version: "0.12.10", CompressionLevel: 3})
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	first.Put(BlobEngineCode, []byte("persisted"))
	first.MarkLoaded()
	if err := first.Close(); err != nil {
		t.Fatalf("close cache: %v", err)
	}

	second, err := Open(Config{Dir: dir, Version: "0.12.10", CompressionLevel: 3})
	if err != nil {
		t.Fatalf("reopen cache: %v", err)
	}
	defer second.Close()

	got, err := second.Get(BlobEngineCode)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(got) != "persisted" {
		t.Errorf("unexpected payload after reopen: %q", got)
	}
	if !second.WasLoaded() {
		t.Error("status flag lost across reopen")
	}
}

func TestFlagStore(t *testing.T) {
	fs := NewFlagStore(filepath.Join(t.TempDir(), "status"))

	if version, loaded := fs.WasLoaded(); loaded || version != "" {
		t.Errorf("fresh flag store reported loaded=%v version=%q", loaded, version)
	}

	if err := fs.MarkLoaded("0.12.10"); err != nil {
		t.Fatalf("mark loaded: %v", err)
	}
	version, loaded := fs.WasLoaded()
	if !loaded || version != "0.12.10" {
		t.Errorf("WasLoaded = (%q, %v), want (0.12.10, true)", version, loaded)
	}

	if err := fs.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, loaded := fs.WasLoaded(); loaded {
		t.Error("flag survived Clear")
	}
	// Clearing twice must stay quiet.
	if err := fs.Clear(); err != nil {
		t.Errorf("second clear: %v", err)
	}
}

func TestBlobStore_CompressedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	bs, err := OpenBlobStore(dir, 3)
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}

	// Highly compressible payload larger than the compression floor.
	payload := bytes.Repeat([]byte("abcdefgh"), 1024)
	rec := &Record{Name: BlobEngineBinary, Data: payload, Version: "v"}
	if err := bs.Put(rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Stored file must be smaller than the original.
	path := filepath.Join(dir, blobFilePrefix+BlobEngineBinary)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat blob file: %v", err)
	}
	if info.Size() >= int64(len(payload)) {
		t.Errorf("blob file not compressed: %d bytes on disk", info.Size())
	}

	got, err := bs.Get(BlobEngineBinary)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got.Data, payload) {
		t.Error("decompressed payload mismatch")
	}
	if err := bs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestBlobStore_MissingFileTreatedAsMiss(t *testing.T) {
	dir := t.TempDir()
	bs, err := OpenBlobStore(dir, 0)
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}
	defer bs.Close()

	rec := &Record{Name: BlobEngineCode, Data: []byte("x"), Version: "v"}
	if err := bs.Put(rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Remove the backing file out from under the index.
	if err := os.Remove(filepath.Join(dir, blobFilePrefix+BlobEngineCode)); err != nil {
		t.Fatalf("remove blob file: %v", err)
	}

	if _, err := bs.Get(BlobEngineCode); err != ErrCacheMiss {
		t.Errorf("expected ErrCacheMiss for missing file, got %v", err)
	}
}

func TestKVStore_Upsert(t *testing.T) {
	kv, err := OpenKVStore(t.TempDir())
	if err != nil {
		t.Fatalf("open kv store: %v", err)
	}
	defer kv.Close()

	for _, payload := range []string{"first", "second"} {
		rec := &Record{Name: BlobEngineCode, Data: []byte(payload), Version: "v"}
		if err := kv.Put(rec); err != nil {
			t.Fatalf("put %q: %v", payload, err)
		}
	}

	got, err := kv.Get(BlobEngineCode)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Data) != "second" {
		t.Errorf("upsert did not replace: %q", got.Data)
	}
}
