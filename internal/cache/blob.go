package cache

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// blobFilePrefix is the fixed path prefix for blob files inside the
// blob directory.
const blobFilePrefix = "v2a-engine-"

// BlobStore is the fallback cache tier: one zstd-compressed file per blob
// plus a gob index carrying the version tags and timestamps.
type BlobStore struct {
	basePath string

	compressionLevel int
	encoder          *zstd.Encoder
	decoder          *zstd.Decoder

	mu    sync.Mutex
	index map[string]*blobEntry
}

// blobEntry is an entry in the blob store index.
type blobEntry struct {
	Name       string
	FilePath   string
	Version    string
	StoredAt   time.Time
	Size       int64
	Compressed bool
}

// OpenBlobStore creates or reopens the blob tier rooted at basePath.
func OpenBlobStore(basePath string, compressionLevel int) (*BlobStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}

	bs := &BlobStore{
		basePath:         basePath,
		compressionLevel: compressionLevel,
		index:            make(map[string]*blobEntry),
	}

	if compressionLevel > 0 {
		var err error
		bs.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		bs.decoder, err = zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
	}

	// A missing or unreadable index just means starting empty.
	if err := bs.loadIndex(); err != nil {
		bs.index = make(map[string]*blobEntry)
	}

	return bs, nil
}

// Get returns the record stored under name.
func (bs *BlobStore) Get(name string) (*Record, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	entry, ok := bs.index[name]
	if !ok {
		return nil, ErrCacheMiss
	}

	data, err := os.ReadFile(entry.FilePath)
	if err != nil {
		// File missing or unreadable: drop it from the index.
		delete(bs.index, name)
		return nil, ErrCacheMiss
	}

	if entry.Compressed {
		if bs.decoder == nil {
			delete(bs.index, name)
			return nil, ErrCacheMiss
		}
		decompressed, err := bs.decoder.DecodeAll(data, nil)
		if err != nil {
			delete(bs.index, name)
			os.Remove(entry.FilePath)
			return nil, ErrCacheMiss
		}
		data = decompressed
	}

	return &Record{
		Name:     name,
		Data:     data,
		Version:  entry.Version,
		StoredAt: entry.StoredAt,
	}, nil
}

// Put stores a record, replacing any previous file for the same name.
func (bs *BlobStore) Put(rec *Record) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	dataToWrite := rec.Data
	compressed := false
	if bs.encoder != nil && len(rec.Data) > 1024 {
		compressedData := bs.encoder.EncodeAll(rec.Data, nil)
		if len(compressedData) < len(rec.Data) {
			dataToWrite = compressedData
			compressed = true
		}
	}

	filePath := filepath.Join(bs.basePath, blobFilePrefix+rec.Name)
	if err := writeFileAtomic(filePath, dataToWrite); err != nil {
		return fmt.Errorf("write blob file: %w", err)
	}

	bs.index[rec.Name] = &blobEntry{
		Name:       rec.Name,
		FilePath:   filePath,
		Version:    rec.Version,
		StoredAt:   rec.StoredAt,
		Size:       int64(len(dataToWrite)),
		Compressed: compressed,
	}

	return bs.saveIndex()
}

// Delete removes the record stored under name.
func (bs *BlobStore) Delete(name string) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	entry, ok := bs.index[name]
	if !ok {
		return nil
	}

	os.Remove(entry.FilePath)
	delete(bs.index, name)

	return bs.saveIndex()
}

// Close persists the index.
func (bs *BlobStore) Close() error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	return bs.saveIndex()
}

func (bs *BlobStore) indexPath() string {
	return filepath.Join(bs.basePath, "blobs.index")
}

func (bs *BlobStore) loadIndex() error {
	file, err := os.Open(bs.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	return gob.NewDecoder(file).Decode(&bs.index)
}

func (bs *BlobStore) saveIndex() error {
	tempPath := bs.indexPath() + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	err = gob.NewEncoder(file).Encode(bs.index)
	closeErr := file.Close()

	if err != nil {
		os.Remove(tempPath)
		return err
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return closeErr
	}

	return os.Rename(tempPath, bs.indexPath())
}

// writeFileAtomic writes to a temp file first, then renames into place.
func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	closeErr := file.Close()

	if err != nil {
		os.Remove(tempPath)
		return err
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return closeErr
	}

	return os.Rename(tempPath, path)
}
