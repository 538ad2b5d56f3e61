package cache

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Flag store keys.
const (
	flagKeyVersion = "engine-version-loaded"
	flagKeyLoaded  = "engine-loaded"
)

// FlagStore persists the "engine previously loaded successfully" marker
// as a tiny key=value file. It is a hint to trigger auto-initialization,
// never the source of truth for whether blobs exist.
type FlagStore struct {
	path string
}

// NewFlagStore returns a flag store backed by the given file path.
func NewFlagStore(path string) *FlagStore {
	return &FlagStore{path: path}
}

// MarkLoaded records that the engine initialized successfully under the
// given version.
func (fs *FlagStore) MarkLoaded(version string) error {
	content := fmt.Sprintf("%s=%s\n%s=true\n", flagKeyVersion, version, flagKeyLoaded)
	if err := writeFileAtomic(fs.path, []byte(content)); err != nil {
		return fmt.Errorf("write status flag: %w", err)
	}
	return nil
}

// WasLoaded reports whether a previous session loaded the engine, and
// which version it loaded.
func (fs *FlagStore) WasLoaded() (version string, loaded bool) {
	file, err := os.Open(fs.path)
	if err != nil {
		return "", false
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if ok {
			values[key] = value
		}
	}
	if scanner.Err() != nil {
		return "", false
	}

	return values[flagKeyVersion], values[flagKeyLoaded] == "true"
}

// Clear removes the marker. A missing marker is not an error.
func (fs *FlagStore) Clear() error {
	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove status flag: %w", err)
	}
	return nil
}
