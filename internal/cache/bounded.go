package cache

import (
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
)

// DefaultCapacity is the LRU size used when callers have no preference.
const DefaultCapacity = 100

// BoundedCache is a fixed-capacity LRU cache with hit/miss/eviction counters.
// It is safe for concurrent use.
type BoundedCache[K comparable, V any] struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[K, V]
	capacity int

	hits      uint64
	misses    uint64
	evictions uint64
}

// NewBoundedCache creates a cache holding at most capacity entries.
func NewBoundedCache[K comparable, V any](capacity int) (*BoundedCache[K, V], error) {
	if capacity < 1 {
		return nil, perrors.ConfigError(fmt.Sprintf("cache capacity must be at least 1, got %d", capacity), nil)
	}

	l, err := simplelru.NewLRU[K, V](capacity, nil)
	if err != nil {
		return nil, perrors.ConfigError("create lru", err)
	}

	return &BoundedCache[K, V]{lru: l, capacity: capacity}, nil
}

// Get returns the value for key and marks it most recently used.
// A stored zero value is reported as found.
func (c *BoundedCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(key)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Peek returns the value without touching recency or counters.
func (c *BoundedCache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Peek(key)
}

// Put inserts or replaces key. On a full cache the least recently used
// entry is evicted first.
func (c *BoundedCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lru.Add(key, value) {
		c.evictions++
	}
}

// Remove deletes key and reports whether it was present.
func (c *BoundedCache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(key)
}

// Keys returns the keys from least to most recently used.
func (c *BoundedCache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

// Len returns the number of entries.
func (c *BoundedCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Purge drops every entry. Counters are kept.
func (c *BoundedCache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Stats returns a snapshot of the counters.
func (c *BoundedCache[K, V]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      c.lru.Len(),
		Capacity:  c.capacity,
	}
}
