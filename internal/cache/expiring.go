package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
)

const (
	// DefaultTTL is how long query results stay valid.
	DefaultTTL = 300 * time.Second
	// DefaultMaxSize bounds the number of cached query results.
	DefaultMaxSize = 100
)

// ExpiringOptions configures an ExpiringCache.
type ExpiringOptions struct {
	// TTL applies to Put. Zero means DefaultTTL; negative is rejected.
	TTL time.Duration
	// MaxSize bounds the entry count. Zero means DefaultMaxSize.
	MaxSize int
	// SweepInterval enables Start's background sweep. Zero disables it.
	SweepInterval time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type expiringEntry[V any] struct {
	value    V
	expireAt time.Time
}

// ExpiringCache is a TTL cache with LRU bounding. Entries are logically
// absent once their expiry passes; they are removed lazily on access or by
// an optional periodic sweep.
type ExpiringCache[K comparable, V any] struct {
	mu      sync.Mutex
	lru     *simplelru.LRU[K, expiringEntry[V]]
	ttl     time.Duration
	maxSize int
	sweep   time.Duration
	now     func() time.Time

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewExpiringCache validates opts and builds the cache.
func NewExpiringCache[K comparable, V any](opts ExpiringOptions) (*ExpiringCache[K, V], error) {
	if opts.TTL < 0 {
		return nil, perrors.ConfigError(fmt.Sprintf("ttl must be non-negative, got %s", opts.TTL), nil)
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxSize < 0 {
		return nil, perrors.ConfigError(fmt.Sprintf("max size must be at least 1, got %d", opts.MaxSize), nil)
	}
	if opts.MaxSize == 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.SweepInterval < 0 {
		return nil, perrors.ConfigError(fmt.Sprintf("sweep interval must be non-negative, got %s", opts.SweepInterval), nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	l, err := simplelru.NewLRU[K, expiringEntry[V]](opts.MaxSize, nil)
	if err != nil {
		return nil, perrors.ConfigError("create lru", err)
	}

	return &ExpiringCache[K, V]{
		lru:     l,
		ttl:     opts.TTL,
		maxSize: opts.MaxSize,
		sweep:   opts.SweepInterval,
		now:     opts.Now,
	}, nil
}

// TTL returns the default time-to-live.
func (c *ExpiringCache[K, V]) TTL() time.Duration {
	return c.ttl
}

// Get returns the live value for key. An expired entry is removed and
// counted as an expiration, not a miss.
func (c *ExpiringCache[K, V]) Get(key K) (V, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return zero, false
	}
	if !now.Before(e.expireAt) {
		c.lru.Remove(key)
		c.expirations++
		return zero, false
	}

	c.hits++
	return e.value, true
}

// Put stores value with the default TTL.
func (c *ExpiringCache[K, V]) Put(key K, value V) {
	c.PutWithTTL(key, value, 0)
}

// PutWithTTL stores value expiring after ttl. A ttl <= 0 uses the default.
func (c *ExpiringCache[K, V]) PutWithTTL(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	e := expiringEntry[V]{value: value, expireAt: c.now().Add(ttl)}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lru.Add(key, e) {
		c.evictions++
	}
}

// Remove deletes key and reports whether it was present.
func (c *ExpiringCache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(key)
}

// Purge drops every entry, e.g. after the index changes underneath.
func (c *ExpiringCache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Sweep removes every expired entry and returns how many were dropped.
// Swept entries are not counted as expirations; only accesses are.
func (c *ExpiringCache[K, V]) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, k := range c.lru.Keys() {
		if e, ok := c.lru.Peek(k); ok && !now.Before(e.expireAt) {
			c.lru.Remove(k)
			removed++
		}
	}
	return removed
}

// Start runs Sweep on SweepInterval until ctx ends or Stop is called.
// It is a no-op when the interval is zero.
func (c *ExpiringCache[K, V]) Start(ctx context.Context) {
	if c.sweep <= 0 {
		return
	}

	c.mu.Lock()
	if c.stop != nil {
		c.mu.Unlock()
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	stop, done := c.stop, c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.sweep)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

// Stop halts the background sweep and waits for it to exit.
func (c *ExpiringCache[K, V]) Stop() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.mu.Unlock()

	if stop == nil {
		return
	}
	c.stopOnce.Do(func() { close(stop) })
	<-done
}

// Len returns the number of stored entries, including expired ones not yet removed.
func (c *ExpiringCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of the counters.
func (c *ExpiringCache[K, V]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Size:        c.lru.Len(),
		Capacity:    c.maxSize,
	}
}
