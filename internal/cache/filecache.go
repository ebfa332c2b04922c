package cache

import (
	"fmt"
	"io/fs"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultFileCapacity is the number of file contents kept by default.
const DefaultFileCapacity = 50

// Loader reads fresh content for path.
type Loader func(path string) (string, error)

type fileEntry struct {
	content string
	modTime time.Time
}

// FileCache caches file contents keyed by path and validates each hit
// against the file's current modification time.
type FileCache struct {
	entries *BoundedCache[string, fileEntry]
	stat    func(string) (fs.FileInfo, error)
	group   singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
	stale  atomic.Uint64
}

// NewFileCache creates a file cache of the given capacity.
func NewFileCache(capacity int) (*FileCache, error) {
	entries, err := NewBoundedCache[string, fileEntry](capacity)
	if err != nil {
		return nil, err
	}
	return &FileCache{entries: entries, stat: os.Stat}, nil
}

// GetOrLoad returns the cached content for path if its modification time is
// unchanged; otherwise it calls loader and caches the result. Loader and stat
// failures are returned without touching the cache.
func (c *FileCache) GetOrLoad(path string, loader Loader) (string, error) {
	info, err := c.stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	modTime := info.ModTime()

	if e, ok := c.entries.Get(path); ok {
		if e.modTime.Equal(modTime) {
			c.hits.Add(1)
			return e.content, nil
		}
		c.stale.Add(1)
	} else {
		c.misses.Add(1)
	}

	// The key includes the mtime so a caller that observed a newer file never
	// joins a load started for an older one.
	key := path + "\x00" + modTime.UTC().Format(time.RFC3339Nano)
	v, err, _ := c.group.Do(key, func() (any, error) {
		content, err := loader(path)
		if err != nil {
			return "", err
		}
		c.entries.Put(path, fileEntry{content: content, modTime: modTime})
		return content, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Read is GetOrLoad with ReadText as the loader.
func (c *FileCache) Read(path string) (string, error) {
	return c.GetOrLoad(path, ReadText)
}

// Invalidate drops path from the cache.
func (c *FileCache) Invalidate(path string) {
	c.entries.Remove(path)
}

// Stats returns a snapshot of the counters. Hits, Misses and StaleMisses are
// counted here; Evictions, Size and Capacity come from the underlying LRU.
func (c *FileCache) Stats() CacheStats {
	s := c.entries.Stats()
	s.Hits = c.hits.Load()
	s.Misses = c.misses.Load()
	s.StaleMisses = c.stale.Load()
	return s
}
