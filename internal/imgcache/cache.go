// Package imgcache remembers the dimensions of images shown in popups so
// layout does not decode the same file on every message. The cache is an
// LRU bounded to a few dozen entries and is persisted in SQLite between
// daemon runs.
package imgcache

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultMaxEntries is the cache size used when none is configured.
const DefaultMaxEntries = 32

// ErrUndecodable is returned for files whose header is not a known image format.
var ErrUndecodable = errors.New("unsupported image format")

// Entry describes one cached image.
type Entry struct {
	Path    string
	Width   int
	Height  int
	Format  string
	ModTime time.Time
}

// Cache maps absolute image paths to their dimensions.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, Entry]
	max     int
	logger  *slog.Logger

	hits   int
	misses int
}

// New creates an empty cache holding at most max entries.
func New(max int, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if max <= 0 {
		max = DefaultMaxEntries
	}
	entries, err := lru.New[string, Entry](max)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &Cache{entries: entries, max: max, logger: logger}
}

// ImageSize returns the pixel size of the image at path.
func (c *Cache) ImageSize(path string) (int, int, error) {
	e, err := c.Lookup(path)
	if err != nil {
		return 0, 0, err
	}
	return e.Width, e.Height, nil
}

// Lookup returns the entry for path, decoding the image header when the
// path is unknown or the file changed since it was cached.
func (c *Cache) Lookup(path string) (Entry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to resolve image path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		c.mu.Lock()
		c.entries.Remove(abs)
		c.mu.Unlock()
		return Entry{}, err
	}

	c.mu.Lock()
	if e, ok := c.entries.Get(abs); ok && e.ModTime.Equal(info.ModTime()) {
		c.hits++
		c.mu.Unlock()
		return e, nil
	}
	c.misses++
	c.mu.Unlock()

	e, err := decode(abs, info.ModTime())
	if err != nil {
		return Entry{}, err
	}

	c.mu.Lock()
	c.entries.Add(abs, e)
	c.mu.Unlock()

	c.logger.Debug("cached image size", "path", abs, "format", e.Format, "width", e.Width, "height", e.Height)
	return e, nil
}

func decode(path string, modTime time.Time) (Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return Entry{}, err
	}
	defer func() { _ = f.Close() }()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Entry{}, fmt.Errorf("%w: %s", ErrUndecodable, path)
		}
		return Entry{}, fmt.Errorf("failed to decode image header: %w", err)
	}
	return Entry{
		Path:    path,
		Width:   cfg.Width,
		Height:  cfg.Height,
		Format:  format,
		ModTime: modTime,
	}, nil
}

// Add inserts e as the most recently used entry.
func (c *Cache) Add(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(e.Path, e)
}

// Entries returns the cached entries, least recently used first.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Values()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Cap returns the maximum number of entries.
func (c *Cache) Cap() int { return c.max }

// Stats returns the hit and miss counts since the cache was created.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
