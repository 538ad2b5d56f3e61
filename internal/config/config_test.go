package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.CacheDir == "" {
		t.Error("default cache dir is empty")
	}
	if cfg.Engine.Version == "" {
		t.Error("default engine version is empty")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty cache dir", func(c *Config) { c.CacheDir = "" }},
		{"negative debounce", func(c *Config) { c.WatchDebounce = -time.Second }},
		{"empty engine version", func(c *Config) { c.Engine.Version = "" }},
		{"non-http base url", func(c *Config) { c.Engine.BaseURL = "ftp://example.com" }},
		{"tiny fetch timeout", func(c *Config) { c.Engine.FetchTimeout = time.Millisecond }},
		{"compression out of range", func(c *Config) { c.Engine.CompressionLevel = 42 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted invalid config")
			}
		})
	}
}

func TestValidateExpandsTilde(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheDir = "~/v2a-cache"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if strings.HasPrefix(cfg.CacheDir, "~") {
		t.Errorf("tilde not expanded: %q", cfg.CacheDir)
	}
}

func TestLoadFromViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("output_dir", "/tmp/out")
	viper.Set("play_after_convert", true)
	viper.Set("watch_debounce", "2s")
	viper.Set("engine.version", "0.13.0")
	viper.Set("engine.fetch_timeout", "90s")

	cfg, err := LoadFromViper()
	if err != nil {
		t.Fatalf("LoadFromViper: %v", err)
	}
	if cfg.OutputDir != "/tmp/out" {
		t.Errorf("output dir = %q", cfg.OutputDir)
	}
	if !cfg.PlayAfterConvert {
		t.Error("play_after_convert not picked up")
	}
	if cfg.WatchDebounce != 2*time.Second {
		t.Errorf("watch debounce = %v", cfg.WatchDebounce)
	}
	if cfg.Engine.Version != "0.13.0" {
		t.Errorf("engine version = %q", cfg.Engine.Version)
	}
	if cfg.Engine.FetchTimeout != 90*time.Second {
		t.Errorf("fetch timeout = %v", cfg.Engine.FetchTimeout)
	}
	// Unset keys fall back to defaults.
	if cfg.Engine.BaseURL != DefaultEngineConfig().BaseURL {
		t.Errorf("base url = %q", cfg.Engine.BaseURL)
	}
}

func TestLoadFromViperRejectsInvalid(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("engine.base_url", "not-a-url")
	if _, err := LoadFromViper(); err == nil {
		t.Error("invalid base_url accepted")
	}
}
