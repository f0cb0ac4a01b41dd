// Package cache implements the document cache: it maps backing-file paths to
// lazily opened handles, opens each path at most once, and keeps rendered
// thumbnails.
//
// The cache is the only shared mutable resource of an editing session. It is
// safe for concurrent use by the editing goroutine and background renderers.
package cache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/pyhub-apps/pdfpages-golang/pkg/page"
	"github.com/pyhub-apps/pdfpages-golang/pkg/render"
	"github.com/pyhub-apps/pdfpages-golang/pkg/source"
)

// DefaultMaxThumbnails bounds the thumbnail store when no limit is configured.
const DefaultMaxThumbnails = 512

// maxReopens bounds how often an open restarts because its path was evicted
// while the file was being opened.
const maxReopens = 3

var errEvicted = errors.New("evicted while opening")

// generation changes whenever a key is evicted or the cache is cleared. An
// open that finishes under a different generation than it started with is
// stale and its handle is closed.
type generation struct {
	epoch uint64
	key   uint64
}

// Cache owns every document handle it returns.
type Cache struct {
	opener   source.Opener
	querier  source.PasswordQuerier
	renderer render.Renderer
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]source.Document
	gens    map[string]uint64
	epoch   uint64
	closed  bool
	thumbs  *thumbnails

	opens   singleflight.Group
	renders singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithPasswordQuerier sets the capability asked for passwords of protected files.
func WithPasswordQuerier(q source.PasswordQuerier) Option {
	return func(c *Cache) { c.querier = q }
}

// WithRenderer sets the renderer behind Render (render.Default() otherwise).
func WithRenderer(r render.Renderer) Option {
	return func(c *Cache) {
		if r != nil {
			c.renderer = r
		}
	}
}

// WithMaxThumbnails bounds the thumbnail store; n <= 0 keeps the default.
func WithMaxThumbnails(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.thumbs = newThumbnails(n)
		}
	}
}

// WithLogger sets the logger (slog.Default() otherwise).
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns an empty cache opening files through opener.
func New(opener source.Opener, opts ...Option) *Cache {
	c := &Cache{
		opener:   opener,
		renderer: render.Default(),
		logger:   slog.Default(),
		entries:  make(map[string]source.Document),
		gens:     make(map[string]uint64),
		thumbs:   newThumbnails(DefaultMaxThumbnails),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the cache key for path: its cleaned absolute form.
func Key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// GetOrOpen returns the handle for path, opening the file on first use.
// Concurrent callers for the same path share a single open. Failed opens
// (including authentication failures and cancelled prompts) are not cached.
func (c *Cache) GetOrOpen(ctx context.Context, path string) (source.Document, error) {
	key := Key(path)
	if doc, err := c.lookup(key); doc != nil || err != nil {
		return doc, err
	}

	v, err, _ := c.opens.Do(key, func() (any, error) {
		return c.open(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(source.Document), nil
}

// open runs inside the singleflight call for key. An eviction during the
// open discards the handle and starts over so the caller sees the file as it
// is now.
func (c *Cache) open(ctx context.Context, key string) (source.Document, error) {
	for range maxReopens {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, fmt.Errorf("%w: cache", source.ErrClosed)
		}
		// another caller may have finished opening while we queued
		if doc, ok := c.entries[key]; ok {
			c.mu.Unlock()
			return doc, nil
		}
		gen := c.genOf(key)
		c.mu.Unlock()

		doc, err := c.opener.Open(ctx, key, c.querier)
		if err != nil {
			c.logger.Debug("open failed", "path", key, "error", err)
			return nil, err
		}

		kept, err := c.store(key, gen, doc)
		if kept != doc {
			if cerr := doc.Close(); cerr != nil {
				c.logger.Warn("close failed", "path", key, "error", cerr)
			}
		}
		if err != nil {
			return nil, err
		}
		if kept != nil {
			c.logger.Debug("opened document", "path", key, "pages", kept.PageCount())
			return kept, nil
		}
		c.logger.Debug("discarded stale open", "path", key)
	}
	return nil, fmt.Errorf("%s: %w", key, errEvicted)
}

// store records doc under key unless the key changed generation since gen.
// It returns the handle callers should use: doc, an entry stored earlier
// (doc is then redundant), or nil when doc is stale.
func (c *Cache) store(key string, gen generation, doc source.Document) (source.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("%w: cache", source.ErrClosed)
	}
	if c.genOf(key) != gen {
		return nil, nil
	}
	if existing, ok := c.entries[key]; ok {
		return existing, nil
	}
	c.entries[key] = doc
	return doc, nil
}

// genOf must be called with c.mu held.
func (c *Cache) genOf(key string) generation {
	return generation{epoch: c.epoch, key: c.gens[key]}
}

// Pages returns the full page list of the file at path.
func (c *Cache) Pages(ctx context.Context, path string) ([]page.Page, error) {
	doc, err := c.GetOrOpen(ctx, path)
	if err != nil {
		return nil, err
	}
	return source.Pages(doc, Key(path))
}

// Contains reports whether path currently has an open handle
func (c *Cache) Contains(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[Key(path)]
	return ok
}

// Len returns the number of open handles
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Password returns the password that unlocked path, or "" if the file is not
// open or not protected.
func (c *Cache) Password(path string) string {
	c.mu.Lock()
	doc := c.entries[Key(path)]
	c.mu.Unlock()

	if p, ok := doc.(source.Protected); ok {
		return p.Password()
	}
	return ""
}

// Render returns the thumbnail of p fitted into size, rendering it on a
// cache miss. It makes Cache usable as the renderer of a render.Pool.
func (c *Cache) Render(ctx context.Context, p page.Page, size page.Size) (image.Image, error) {
	key := newThumbKey(p, size)
	if img, ok := c.thumbs.get(key); ok {
		return img, nil
	}

	v, err, _ := c.renders.Do(key.String(), func() (any, error) {
		if img, ok := c.thumbs.get(key); ok {
			return img, nil
		}
		// the backing file must be reachable (and unlocked) before rendering
		doc, err := c.GetOrOpen(ctx, p.FileID)
		if err != nil {
			return nil, err
		}
		var img image.Image
		if dr, ok := c.renderer.(render.DocumentRenderer); ok {
			img, err = dr.RenderDocument(ctx, doc, p, size)
		} else {
			img, err = c.renderer.Render(ctx, p, size)
		}
		if err != nil {
			return nil, err
		}
		c.thumbs.put(key, img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

// Evict closes and drops the handle and thumbnails of one path, e.g. after
// the file changed on disk. The next access reopens it.
func (c *Cache) Evict(path string) {
	key := Key(path)

	c.mu.Lock()
	doc, ok := c.entries[key]
	delete(c.entries, key)
	c.gens[key]++
	c.mu.Unlock()

	c.thumbs.dropFile(key)
	if ok {
		if err := doc.Close(); err != nil {
			c.logger.Warn("close failed", "path", key, "error", err)
		}
		c.logger.Debug("evicted document", "path", key)
	}
}

// Clear closes every handle and drops all thumbnails. Handles returned
// earlier must not be used afterwards.
func (c *Cache) Clear() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]source.Document)
	c.gens = make(map[string]uint64)
	c.epoch++
	c.mu.Unlock()

	c.thumbs.clear()
	for key, doc := range entries {
		if err := doc.Close(); err != nil {
			c.logger.Warn("close failed", "path", key, "error", err)
		}
	}
}

// Close clears the cache and refuses further opens. Closing twice is a no-op.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.Clear()
	return nil
}

func (c *Cache) lookup(key string) (source.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("%w: cache", source.ErrClosed)
	}
	return c.entries[key], nil
}
