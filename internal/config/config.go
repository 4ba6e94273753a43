package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by every storeshift command. Flags
// override whatever is loaded here.
type Config struct {
	// SearchPath is the directory holding "<package>.schema" directories.
	SearchPath string `yaml:"search_path"`
	// Package is the schema package name, without the .schema suffix.
	Package string `yaml:"package"`
	// StorePath is the store file commands operate on.
	StorePath string `yaml:"store_path"`
	// StoreKind selects the store driver; "sqlite" when empty.
	StoreKind string `yaml:"store_kind"`
	// WatchDebounce is how long `versions --watch` waits for a package
	// directory to settle before reloading it.
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// DefaultDataDir returns the default data directory (~/.storeshift).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".storeshift")
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		SearchPath:    filepath.Join(DefaultDataDir(), "schemas"),
		StoreKind:     "sqlite",
		WatchDebounce: 200 * time.Millisecond,
	}
}

// Load reads configuration from a YAML file, falling back to defaults
// for any unset fields. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	// Relative paths in the file are relative to the file.
	base := filepath.Dir(path)
	cfg.SearchPath = resolvePath(base, cfg.SearchPath)
	cfg.StorePath = resolvePath(base, cfg.StorePath)

	if cfg.StoreKind == "" {
		cfg.StoreKind = "sqlite"
	}
	if cfg.WatchDebounce < 0 {
		return nil, fmt.Errorf("parse config %s: negative watch_debounce %s", path, cfg.WatchDebounce)
	}
	if cfg.WatchDebounce == 0 {
		cfg.WatchDebounce = Default().WatchDebounce
	}
	return cfg, nil
}

func resolvePath(base, p string) string {
	switch {
	case p == "":
		return ""
	case p == "~" || strings.HasPrefix(p, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	case filepath.IsAbs(p):
		return p
	default:
		return filepath.Join(base, p)
	}
}

// ConfigPath returns the default path to the config file.
func ConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}
