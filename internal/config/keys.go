package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ValidKeys returns all valid configuration keys.
func ValidKeys() []string {
	return []string{
		"thumbnail.size", "thumbnail.workers", "thumbnail.cache",
		"image.dpi",
		"watch.enabled", "watch.debounce_ms",
	}
}

// IsValidKey returns true if the key is a valid configuration key.
func IsValidKey(key string) bool {
	return slices.Contains(ValidKeys(), key)
}

// Get returns the effective value of a configuration key as a string.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "thumbnail.size":
		return strconv.Itoa(c.ThumbnailSize()), nil
	case "thumbnail.workers":
		return strconv.Itoa(c.ThumbnailWorkers()), nil
	case "thumbnail.cache":
		return strconv.Itoa(c.ThumbnailCache()), nil
	case "image.dpi":
		return strconv.FormatFloat(c.ImageDPI(), 'f', -1, 64), nil
	case "watch.enabled":
		return strconv.FormatBool(c.WatchEnabled()), nil
	case "watch.debounce_ms":
		return strconv.Itoa(int(c.WatchDebounce().Milliseconds())), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

// Set sets the value of a configuration key. The value is validated before
// it is stored.
func (c *Config) Set(key, value string) error {
	next := *c
	switch key {
	case "thumbnail.size":
		n, err := positive(key, value)
		if err != nil {
			return err
		}
		next.Thumbnail.Size = &n
	case "thumbnail.workers":
		n, err := positive(key, value)
		if err != nil {
			return err
		}
		next.Thumbnail.Workers = &n
	case "thumbnail.cache":
		n, err := positive(key, value)
		if err != nil {
			return err
		}
		next.Thumbnail.Cache = &n
	case "image.dpi":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: image.dpi must be a number", ErrInvalidValue)
		}
		next.Image.DPI = &f
	case "watch.enabled":
		v := strings.ToLower(value)
		if v != "true" && v != "false" {
			return fmt.Errorf("%w: watch.enabled must be true or false", ErrInvalidValue)
		}
		b := v == "true"
		next.Watch.Enabled = &b
	case "watch.debounce_ms":
		n, err := positive(key, value)
		if err != nil {
			return err
		}
		next.Watch.DebounceMS = &n
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func positive(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrInvalidValue, key)
	}
	return n, nil
}
