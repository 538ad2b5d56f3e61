// Package config holds the application configuration: where the engine
// cache lives, which engine build to fetch, and how conversions behave.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
)

// Config contains all converter configuration options.
type Config struct {
	// Storage settings
	CacheDir  string `yaml:"cache_dir" env:"V2A_CACHE_DIR"`
	OutputDir string `yaml:"output_dir" env:"V2A_OUTPUT_DIR"`

	// Playback settings
	PlayAfterConvert bool `yaml:"play_after_convert" env:"V2A_PLAY_AFTER_CONVERT"`

	// Watch settings
	WatchDebounce time.Duration `yaml:"watch_debounce" env:"V2A_WATCH_DEBOUNCE"`

	Engine EngineConfig `yaml:"engine"`
}

// EngineConfig contains engine asset and runtime settings.
type EngineConfig struct {
	Version          string        `yaml:"version" env:"V2A_ENGINE_VERSION"`
	BaseURL          string        `yaml:"base_url" env:"V2A_ENGINE_BASE_URL"`
	AutoLoad         bool          `yaml:"auto_load" env:"V2A_ENGINE_AUTO_LOAD"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout" env:"V2A_ENGINE_FETCH_TIMEOUT"`
	ConvertTimeout   time.Duration `yaml:"convert_timeout" env:"V2A_ENGINE_CONVERT_TIMEOUT"`
	CompressionLevel int           `yaml:"compression_level" env:"V2A_ENGINE_COMPRESSION_LEVEL"`
}

// DefaultConfig returns a Config with sensible defaults. The cache
// directory follows the XDG data scope for the application.
func DefaultConfig() Config {
	return Config{
		CacheDir:         defaultCacheDir(),
		OutputDir:        ".",
		PlayAfterConvert: false,
		WatchDebounce:    500 * time.Millisecond,
		Engine:           DefaultEngineConfig(),
	}
}

// DefaultEngineConfig returns default engine settings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Version:          "0.12.10",
		BaseURL:          "https://johnvansickle.com/ffmpeg/releases",
		AutoLoad:         true,
		FetchTimeout:     5 * time.Minute,
		ConvertTimeout:   10 * time.Minute,
		CompressionLevel: 3,
	}
}

func defaultCacheDir() string {
	scope := gap.NewScope(gap.User, "v2a")
	dirs, err := scope.DataDirs()
	if err == nil && len(dirs) > 0 {
		return dirs[0]
	}
	dir, err := homedir.Expand("~/.v2a")
	if err != nil {
		return ".v2a"
	}
	return dir
}

// Validate checks if the configuration is valid. Paths with a leading
// tilde are expanded in place.
func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir cannot be empty")
	}
	for _, dir := range []*string{&c.CacheDir, &c.OutputDir} {
		expanded, err := homedir.Expand(*dir)
		if err != nil {
			return fmt.Errorf("cannot expand path %q: %w", *dir, err)
		}
		*dir = expanded
	}

	if c.WatchDebounce < 0 {
		return fmt.Errorf("watch_debounce cannot be negative, got %v", c.WatchDebounce)
	}

	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	return nil
}

// Validate checks if the engine configuration is valid.
func (c *EngineConfig) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base_url must be an http(s) URL, got %q", c.BaseURL)
	}
	if c.FetchTimeout < time.Second {
		return fmt.Errorf("fetch_timeout must be at least 1 second, got %v", c.FetchTimeout)
	}
	if c.ConvertTimeout < time.Second {
		return fmt.Errorf("convert_timeout must be at least 1 second, got %v", c.ConvertTimeout)
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 11 {
		return fmt.Errorf("compression_level must be between 0 and 11, got %d", c.CompressionLevel)
	}
	return nil
}
