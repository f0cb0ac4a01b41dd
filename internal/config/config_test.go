package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyhub-apps/pdfpages-golang/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultThumbnailSize, cfg.ThumbnailSize())
	assert.Equal(t, config.DefaultThumbnailWorkers, cfg.ThumbnailWorkers())
	assert.Equal(t, config.DefaultThumbnailCache, cfg.ThumbnailCache())
	assert.Equal(t, config.DefaultImageDPI, cfg.ImageDPI())
	assert.False(t, cfg.WatchEnabled())
	assert.Equal(t, 250*time.Millisecond, cfg.WatchDebounce())
	assert.Equal(t, path, cfg.Path())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "thumbnail:\n  size: 128\n  workers: 2\nimage:\n  dpi: 300\nwatch:\n  enabled: true\n  debounce_ms: 50\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	sc := cfg.SessionConfig()
	assert.Equal(t, 128.0, sc.ItemSize)
	assert.Equal(t, 2, sc.ThumbnailWorkers)
	assert.Equal(t, config.DefaultThumbnailCache, sc.MaxThumbnails)
	assert.Equal(t, 300.0, sc.ImageDPI)
	assert.True(t, sc.WatchFiles)
	assert.Equal(t, 50*time.Millisecond, sc.WatchDebounce)
}

func TestLoadRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	malformed := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(malformed, []byte("thumbnail: [oops"), 0o644))
	_, err := config.Load(malformed)
	assert.Error(t, err)

	outOfRange := filepath.Join(dir, "range.yaml")
	require.NoError(t, os.WriteFile(outOfRange, []byte("thumbnail:\n  size: 2\n"), 0o644))
	_, err = config.Load(outOfRange)
	assert.ErrorIs(t, err, config.ErrInvalidValue)
}

func TestSetGetSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.NoError(t, cfg.Set("thumbnail.size", "512"))
	require.NoError(t, cfg.Set("watch.enabled", "TRUE"))
	require.NoError(t, cfg.Set("image.dpi", "150"))

	assert.ErrorIs(t, cfg.Set("thumbnail.workers", "zero"), config.ErrInvalidValue)
	assert.ErrorIs(t, cfg.Set("thumbnail.size", "99999"), config.ErrInvalidValue)
	assert.ErrorIs(t, cfg.Set("nope", "1"), config.ErrUnknownKey)

	v, err := cfg.Get("thumbnail.size")
	require.NoError(t, err)
	assert.Equal(t, "512", v)

	require.NoError(t, cfg.Save())
	reloaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 512, reloaded.ThumbnailSize())
	assert.True(t, reloaded.WatchEnabled())
	assert.Equal(t, 150.0, reloaded.ImageDPI())

	for _, key := range config.ValidKeys() {
		_, err := reloaded.Get(key)
		assert.NoError(t, err, key)
		assert.True(t, config.IsValidKey(key))
	}
}
