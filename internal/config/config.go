// Package config manages mmapurl's engine tunables, modeled on the
// teacher's $DH_HOME/config.toml layout and flag > env > default
// precedence rule (internal/config/config.go's DHHome()).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the ~/.mmapurl/config.toml file. Field defaults match
// SPEC_FULL.md's ambient-stack tunables: worker pool size, max resident
// pages, eviction low-water mark, level-1/level-2 slice sizes, and the
// HTTP fetch timeout.
type Config struct {
	Workers             int `toml:"workers,omitempty" json:"workers"`
	MaxResidentPages    int `toml:"max_resident_pages,omitempty" json:"max_resident_pages"`
	EvictLowWater       int `toml:"evict_low_water,omitempty" json:"evict_low_water"`
	Level1SliceSize     int `toml:"level1_slice_size,omitempty" json:"level1_slice_size"`
	Level2SliceSize     int `toml:"level2_slice_size,omitempty" json:"level2_slice_size"`
	FetchTimeoutSeconds int `toml:"fetch_timeout_seconds,omitempty" json:"fetch_timeout_seconds"`
}

// Defaults mirror the defaults baked into internal/pagemap (heuristic.go's
// slice sizes and residency caps, engine.go's worker-pool width and
// httpfetcher.go's fetch timeout);
// they're duplicated here (rather than imported) so the config package has
// no dependency on the engine package.
func Defaults() Config {
	return Config{
		Workers:             16,
		MaxResidentPages:    32768,
		EvictLowWater:       500,
		Level1SliceSize:     64,
		Level2SliceSize:     8192,
		FetchTimeoutSeconds: 30,
	}
}

// configDirOverride is set by the --config-dir flag or MMAPURL_HOME env var.
var configDirOverride string

// SetConfigDir allows the CLI to pass in the --config-dir / MMAPURL_HOME value.
func SetConfigDir(dir string) {
	configDirOverride = dir
}

// Home returns the config directory path.
// Precedence: --config-dir flag / SetConfigDir > MMAPURL_HOME env > ~/.mmapurl
func Home() string {
	if configDirOverride != "" {
		return configDirOverride
	}
	if v := os.Getenv("MMAPURL_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".mmapurl")
	}
	return filepath.Join(home, ".mmapurl")
}

// Path returns the full path to config.toml.
func Path() string {
	return filepath.Join(Home(), "config.toml")
}

// EnsureDir creates the mmapurl home directory if it does not exist.
func EnsureDir() error {
	return os.MkdirAll(Home(), 0o755)
}

// Load reads config.toml, applies env var overrides, and returns a Config.
// If the file does not exist, defaults are used. Precedence for each field
// is env > file > default; the config directory itself follows Home's
// flag > env > default order, the teacher's DHHome() rule.
func Load() (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(Path())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// envOverrides maps MMAPURL_* env vars to the field they override, mirroring
// the DH_VM_EAGER_MB-style numeric env var parsing in the teacher's
// internal/vm/uffd_linux.go.
var envOverrides = []struct {
	name string
	set  func(*Config, int)
}{
	{"MMAPURL_WORKERS", func(c *Config, v int) { c.Workers = v }},
	{"MMAPURL_MAX_RESIDENT", func(c *Config, v int) { c.MaxResidentPages = v }},
	{"MMAPURL_EVICT_LOW_WATER", func(c *Config, v int) { c.EvictLowWater = v }},
	{"MMAPURL_LEVEL1_SLICE_SIZE", func(c *Config, v int) { c.Level1SliceSize = v }},
	{"MMAPURL_LEVEL2_SLICE_SIZE", func(c *Config, v int) { c.Level2SliceSize = v }},
	{"MMAPURL_FETCH_TIMEOUT_SECONDS", func(c *Config, v int) { c.FetchTimeoutSeconds = v }},
}

func applyEnvOverrides(cfg *Config) {
	for _, ov := range envOverrides {
		raw := os.Getenv(ov.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		ov.set(cfg, v)
	}
}

// Save writes the Config struct back to config.toml.
func Save(cfg *Config) error {
	if err := EnsureDir(); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(Path(), data, 0o644)
}

// validKeys lists the dot-separated keys usable with Get/Set.
var validKeys = map[string]bool{
	"workers":               true,
	"max_resident_pages":    true,
	"evict_low_water":       true,
	"level1_slice_size":     true,
	"level2_slice_size":     true,
	"fetch_timeout_seconds": true,
}

// Get retrieves a single config value by key.
func Get(key string) (string, error) {
	if !validKeys[key] {
		return "", fmt.Errorf("unknown config key: %s", key)
	}
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	return getField(cfg, key)
}

// Set sets a single config value by key.
func Set(key, value string) error {
	if !validKeys[key] {
		return fmt.Errorf("unknown config key: %s", key)
	}
	cfg, err := Load()
	if err != nil {
		return err
	}
	if err := setField(cfg, key, value); err != nil {
		return err
	}
	return Save(cfg)
}

func getField(cfg *Config, key string) (string, error) {
	switch key {
	case "workers":
		return strconv.Itoa(cfg.Workers), nil
	case "max_resident_pages":
		return strconv.Itoa(cfg.MaxResidentPages), nil
	case "evict_low_water":
		return strconv.Itoa(cfg.EvictLowWater), nil
	case "level1_slice_size":
		return strconv.Itoa(cfg.Level1SliceSize), nil
	case "level2_slice_size":
		return strconv.Itoa(cfg.Level2SliceSize), nil
	case "fetch_timeout_seconds":
		return strconv.Itoa(cfg.FetchTimeoutSeconds), nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

func setField(cfg *Config, key, value string) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("value for %s must be an integer: %w", key, err)
	}
	switch key {
	case "workers":
		cfg.Workers = v
	case "max_resident_pages":
		cfg.MaxResidentPages = v
	case "evict_low_water":
		cfg.EvictLowWater = v
	case "level1_slice_size":
		cfg.Level1SliceSize = v
	case "level2_slice_size":
		cfg.Level2SliceSize = v
	case "fetch_timeout_seconds":
		cfg.FetchTimeoutSeconds = v
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
