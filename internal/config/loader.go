package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// LoadFromViper loads configuration from Viper, falling back to
// defaults for anything the config file does not set.
func LoadFromViper() (Config, error) {
	cfg := DefaultConfig()

	if viper.IsSet("cache_dir") {
		cfg.CacheDir = viper.GetString("cache_dir")
	}
	if viper.IsSet("output_dir") {
		cfg.OutputDir = viper.GetString("output_dir")
	}
	if viper.IsSet("play_after_convert") {
		cfg.PlayAfterConvert = viper.GetBool("play_after_convert")
	}
	if viper.IsSet("watch_debounce") {
		if d, err := time.ParseDuration(viper.GetString("watch_debounce")); err == nil {
			cfg.WatchDebounce = d
		}
	}

	cfg.Engine = loadEngineConfig()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadEngineConfig() EngineConfig {
	cfg := DefaultEngineConfig()

	if viper.IsSet("engine.version") {
		cfg.Version = viper.GetString("engine.version")
	}
	if viper.IsSet("engine.base_url") {
		cfg.BaseURL = viper.GetString("engine.base_url")
	}
	if viper.IsSet("engine.auto_load") {
		cfg.AutoLoad = viper.GetBool("engine.auto_load")
	}
	if viper.IsSet("engine.fetch_timeout") {
		if d, err := time.ParseDuration(viper.GetString("engine.fetch_timeout")); err == nil {
			cfg.FetchTimeout = d
		}
	}
	if viper.IsSet("engine.convert_timeout") {
		if d, err := time.ParseDuration(viper.GetString("engine.convert_timeout")); err == nil {
			cfg.ConvertTimeout = d
		}
	}
	if viper.IsSet("engine.compression_level") {
		cfg.CompressionLevel = viper.GetInt("engine.compression_level")
	}

	return cfg
}

// SetDefaults sets default values in Viper so `config show` and the
// generated config file reflect them.
func SetDefaults() {
	defaults := DefaultConfig()

	viper.SetDefault("cache_dir", defaults.CacheDir)
	viper.SetDefault("output_dir", defaults.OutputDir)
	viper.SetDefault("play_after_convert", defaults.PlayAfterConvert)
	viper.SetDefault("watch_debounce", defaults.WatchDebounce.String())

	viper.SetDefault("engine.version", defaults.Engine.Version)
	viper.SetDefault("engine.base_url", defaults.Engine.BaseURL)
	viper.SetDefault("engine.auto_load", defaults.Engine.AutoLoad)
	viper.SetDefault("engine.fetch_timeout", defaults.Engine.FetchTimeout.String())
	viper.SetDefault("engine.convert_timeout", defaults.Engine.ConvertTimeout.String())
	viper.SetDefault("engine.compression_level", defaults.Engine.CompressionLevel)
}
