// Package config reads and writes the pdfpages configuration file
// (~/.pdfpages/config.yaml by default). Unset values fall back to defaults,
// so an empty or missing file is a valid configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pyhub-apps/pdfpages-golang/pkg/session"
)

var (
	// ErrNoConfigPath is returned when the config path cannot be determined.
	ErrNoConfigPath = errors.New("cannot determine config path")
	// ErrUnknownKey is returned when getting/setting an unknown config key.
	ErrUnknownKey = errors.New("unknown config key")
	// ErrInvalidValue is returned when a config value is invalid.
	ErrInvalidValue = errors.New("invalid config value")
)

// Default values applied when not configured.
const (
	DefaultThumbnailSize    = 256
	DefaultThumbnailWorkers = 4
	DefaultThumbnailCache   = 512
	DefaultImageDPI         = 96.0
	DefaultWatchDebounceMS  = 250
)

// Validation bounds for configuration values.
const (
	MinThumbnailSize    = 16
	MaxThumbnailSize    = 4096
	MinThumbnailWorkers = 1
	MaxThumbnailWorkers = 64
	MinThumbnailCache   = 1
	MaxThumbnailCache   = 1 << 20
	MinImageDPI         = 1.0
	MaxImageDPI         = 2400.0
	MinWatchDebounceMS  = 1
	MaxWatchDebounceMS  = 60_000
)

// Thumbnail holds thumbnail rendering options.
type Thumbnail struct {
	Size    *int `yaml:"size,omitempty"`
	Workers *int `yaml:"workers,omitempty"`
	Cache   *int `yaml:"cache,omitempty"`
}

// Image holds options for image sources.
type Image struct {
	DPI *float64 `yaml:"dpi,omitempty"`
}

// Watch holds backing-file watching options.
type Watch struct {
	Enabled    *bool `yaml:"enabled,omitempty"`
	DebounceMS *int  `yaml:"debounce_ms,omitempty"`
}

// Config contains configuration for pdfpages.
type Config struct {
	Thumbnail Thumbnail `yaml:"thumbnail,omitempty"`
	Image     Image     `yaml:"image,omitempty"`
	Watch     Watch     `yaml:"watch,omitempty"`

	// path is the file this config was loaded from (for Save)
	path string
}

// Validate checks that all configured values are within acceptable bounds.
// Unset values are valid.
func (c *Config) Validate() error {
	if err := checkRange("thumbnail.size", c.Thumbnail.Size, MinThumbnailSize, MaxThumbnailSize); err != nil {
		return err
	}
	if err := checkRange("thumbnail.workers", c.Thumbnail.Workers, MinThumbnailWorkers, MaxThumbnailWorkers); err != nil {
		return err
	}
	if err := checkRange("thumbnail.cache", c.Thumbnail.Cache, MinThumbnailCache, MaxThumbnailCache); err != nil {
		return err
	}
	if c.Image.DPI != nil {
		v := *c.Image.DPI
		if v < MinImageDPI || v > MaxImageDPI {
			return fmt.Errorf("%w: image.dpi must be between %g and %g, got %g",
				ErrInvalidValue, MinImageDPI, MaxImageDPI, v)
		}
	}
	return checkRange("watch.debounce_ms", c.Watch.DebounceMS, MinWatchDebounceMS, MaxWatchDebounceMS)
}

func checkRange(key string, v *int, lo, hi int) error {
	if v == nil {
		return nil
	}
	if *v < lo || *v > hi {
		return fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrInvalidValue, key, lo, hi, *v)
	}
	return nil
}

// ThumbnailSize returns the longest thumbnail side in pixels (defaults to 256).
func (c *Config) ThumbnailSize() int {
	if c.Thumbnail.Size == nil {
		return DefaultThumbnailSize
	}
	return *c.Thumbnail.Size
}

// ThumbnailWorkers returns the number of render workers (defaults to 4).
func (c *Config) ThumbnailWorkers() int {
	if c.Thumbnail.Workers == nil {
		return DefaultThumbnailWorkers
	}
	return *c.Thumbnail.Workers
}

// ThumbnailCache returns how many thumbnails are kept in memory (defaults to 512).
func (c *Config) ThumbnailCache() int {
	if c.Thumbnail.Cache == nil {
		return DefaultThumbnailCache
	}
	return *c.Thumbnail.Cache
}

// ImageDPI returns the resolution assumed for image files (defaults to 96).
func (c *Config) ImageDPI() float64 {
	if c.Image.DPI == nil {
		return DefaultImageDPI
	}
	return *c.Image.DPI
}

// WatchEnabled returns whether backing files are watched (defaults to false)
func (c *Config) WatchEnabled() bool {
	if c.Watch.Enabled == nil {
		return false
	}
	return *c.Watch.Enabled
}

// WatchDebounce returns the quiet period before a file change is reported.
func (c *Config) WatchDebounce() time.Duration {
	ms := DefaultWatchDebounceMS
	if c.Watch.DebounceMS != nil {
		ms = *c.Watch.DebounceMS
	}
	return time.Duration(ms) * time.Millisecond
}

// SessionConfig returns the session configuration described by c.
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		ItemSize:         float64(c.ThumbnailSize()),
		ThumbnailWorkers: c.ThumbnailWorkers(),
		MaxThumbnails:    c.ThumbnailCache(),
		ImageDPI:         c.ImageDPI(),
		WatchFiles:       c.WatchEnabled(),
		WatchDebounce:    c.WatchDebounce(),
	}
}

// DefaultPath returns the path to the user config file: ~/.pdfpages/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pdfpages", "config.yaml")
}

// Load reads configuration from path ("" selects DefaultPath). A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return &Config{}, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{path: path}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("malformed config file %s: %w", path, err)
	}
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

// Path returns the file the configuration is saved to
func (c *Config) Path() string {
	return c.path
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.path == "" {
		c.path = DefaultPath()
	}
	if c.path == "" {
		return ErrNoConfigPath
	}
	return c.SaveTo(c.path)
}

// SaveTo writes the configuration to path, creating parent directories.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	c.path = path
	return nil
}
