// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "TWIG_"

type Config struct {
	LogLevel      string `koanf:"log_level"` // debug, info, warn, error
	DefaultBranch string `koanf:"default_branch"`

	Log struct {
		File       string `koanf:"file"` // relative to the repository directory
		MaxSizeMB  int    `koanf:"max_size_mb"`
		MaxBackups int    `koanf:"max_backups"`
		MaxAgeDays int    `koanf:"max_age_days"`
	} `koanf:"log"`

	Store struct {
		CacheSize       int `koanf:"cache_size"`
		CompressMinSize int `koanf:"compress_min_size"`
		CompressLevel   int `koanf:"compress_level"`
	} `koanf:"store"`

	Catalog struct {
		InMemory           bool  `koanf:"in_memory"`
		ValueLogFileSizeMB int64 `koanf:"value_log_file_size_mb"`
		MemTableSizeMB     int64 `koanf:"mem_table_size_mb"`
	} `koanf:"catalog"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"log_level":                      "info",
		"default_branch":                 "master",
		"log.file":                       "logs/twig.log",
		"log.max_size_mb":                10,
		"log.max_backups":                3,
		"log.max_age_days":               28,
		"store.cache_size":               1000,
		"store.compress_min_size":        1024,
		"store.compress_level":           2,
		"catalog.in_memory":              false,
		"catalog.value_log_file_size_mb": 16,
		"catalog.mem_table_size_mb":      8,
	}
}

// Default returns the built-in configuration with no file or environment
// overrides applied.
func Default() *Config {
	cfg, err := load("", false)
	if err != nil {
		// defaults are static; failing to decode them is a programming error
		panic(err)
	}
	return cfg
}

// Load layers defaults, the TOML file at path (if it exists) and TWIG_*
// environment variables. A double underscore in a variable name separates
// nested keys, so TWIG_STORE__CACHE_SIZE sets store.cache_size.
func Load(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, withEnv bool) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config from %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("checking config file: %w", err)
		}
	}

	if withEnv {
		err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
			s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
			return strings.ReplaceAll(s, "__", ".")
		}), nil)
		if err != nil {
			return nil, fmt.Errorf("loading environment: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DefaultBranch == "" || strings.ContainsAny(c.DefaultBranch, `/\`) {
		return fmt.Errorf("invalid default_branch %q", c.DefaultBranch)
	}
	if c.Store.CacheSize <= 0 {
		return fmt.Errorf("store.cache_size must be positive, got %d", c.Store.CacheSize)
	}
	if c.Store.CompressLevel < 1 || c.Store.CompressLevel > 4 {
		return fmt.Errorf("store.compress_level must be between 1 and 4, got %d", c.Store.CompressLevel)
	}
	return nil
}
