// Package scale is the substrate that keeps a 100+ agent population cheap:
// a TTL/LRU read cache with request coalescing, tiered update scheduling,
// a batching writer, and a lightweight latency monitor. The Manager ties
// them to the store's maintenance operations.
package scale

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheEntries = 5000
	defaultCacheTTL     = 300 * time.Second
)

type cacheEntry struct {
	key      string
	value    any
	expires  time.Time
	listElem *list.Element
}

// CacheStats is a snapshot of cache effectiveness.
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    int64
	Misses  int64
}

// HitRate returns the hit fraction in [0, 1], 0 before any lookups.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is an LRU-ordered TTL cache. Safe for concurrent use. Fetch
// coalesces concurrent misses for the same key into a single load.
type Cache struct {
	maxSize int
	ttl     time.Duration
	monitor *Monitor

	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   *list.List // front = most recently used
	hits    int64
	misses  int64

	flight singleflight.Group

	// now is swappable in tests.
	now func() time.Time
}

// CacheOption configures a [Cache].
type CacheOption func(*Cache)

// WithCacheSize overrides the entry limit.
func WithCacheSize(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithCacheTTL overrides the default time-to-live.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheMonitor records fetch timings on the given monitor.
func WithCacheMonitor(m *Monitor) CacheOption {
	return func(c *Cache) { c.monitor = m }
}

// NewCache builds an empty cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		maxSize: defaultCacheEntries,
		ttl:     defaultCacheTTL,
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key. Expired entries are deleted on
// sight and count as misses.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && c.now().Before(e.expires) {
		c.order.MoveToFront(e.listElem)
		c.hits++
		return e.value, true
	}
	if ok {
		c.removeLocked(e)
	}
	c.misses++
	return nil, false
}

// Set stores value under key with the default TTL, evicting the least
// recently used entry when full.
func (c *Cache) Set(key string, value any) {
	c.SetTTL(key, value, c.ttl)
}

// SetTTL stores value under key with an explicit TTL.
func (c *Cache) SetTTL(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expires = c.now().Add(ttl)
		c.order.MoveToFront(e.listElem)
		return
	}
	if len(c.entries) >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeLocked(oldest.Value.(*cacheEntry))
		}
	}
	e := &cacheEntry{key: key, value: value, expires: c.now().Add(ttl)}
	e.listElem = c.order.PushFront(e)
	c.entries[key] = e
}

// Invalidate drops one key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.removeLocked(e)
	}
}

// InvalidatePrefix drops every key with the given prefix.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.removeLocked(e)
		}
	}
}

// Clear empties the cache. Hit/miss counters survive.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.order.Init()
}

func (c *Cache) removeLocked(e *cacheEntry) {
	c.order.Remove(e.listElem)
	delete(c.entries, e.key)
}

// Stats returns a snapshot of cache effectiveness.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Size:    len(c.entries),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

// Fetch returns the cached value for key or loads it with fn. Concurrent
// misses for the same key run fn once and share the result. Load time is
// recorded as fetch:<key prefix> when a monitor is attached. A ttl of 0
// uses the cache default.
func (c *Cache) Fetch(key string, ttl time.Duration, fn func() (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		// Another caller may have populated the key while we queued.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		start := c.now()
		result, err := fn()
		if c.monitor != nil {
			prefix, _, _ := strings.Cut(key, ":")
			c.monitor.Record(fmt.Sprintf("fetch:%s", prefix), c.now().Sub(start).Seconds())
		}
		if err != nil {
			return nil, err
		}
		c.SetTTL(key, result, ttl)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}
