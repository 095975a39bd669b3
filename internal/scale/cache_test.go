package scale

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheGetSetAndTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewCache()
	c.now = func() time.Time { return now }

	c.Set("agent:a", "hello")
	if v, ok := c.Get("agent:a"); !ok || v != "hello" {
		t.Fatalf("Get = %v, %v; want hello, true", v, ok)
	}

	// One second short of the TTL the entry survives.
	now = now.Add(defaultCacheTTL - time.Second)
	if _, ok := c.Get("agent:a"); !ok {
		t.Error("entry expired before its TTL")
	}

	// Past the TTL it's gone and counts as a miss.
	now = now.Add(2 * time.Second)
	if _, ok := c.Get("agent:a"); ok {
		t.Error("entry survived past its TTL")
	}
	stats := c.Stats()
	if stats.Size != 0 {
		t.Errorf("size = %d after expiry, want 0", stats.Size)
	}
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 2/1", stats.Hits, stats.Misses)
	}
}

func TestCacheLRUEviction(t *testing.T) {
	c := NewCache(WithCacheSize(3))

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Touch "a" so "b" is the least recently used.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing")
	}
	c.Set("d", 4)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted as least recently used")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("%s evicted, want kept", key)
		}
	}
}

func TestCacheInvalidatePrefix(t *testing.T) {
	c := NewCache()
	c.Set("agent:a:memories", 1)
	c.Set("agent:a:topics", 2)
	c.Set("agent:b:memories", 3)

	c.InvalidatePrefix("agent:a")

	if _, ok := c.Get("agent:a:memories"); ok {
		t.Error("agent:a:memories survived prefix invalidation")
	}
	if _, ok := c.Get("agent:b:memories"); !ok {
		t.Error("agent:b:memories dropped by unrelated invalidation")
	}

	c.Clear()
	if c.Stats().Size != 0 {
		t.Error("cache not empty after Clear")
	}
}

func TestFetchCoalescesConcurrentMisses(t *testing.T) {
	mon := NewMonitor()
	c := NewCache(WithCacheMonitor(mon))

	var calls atomic.Int64
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]any, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Fetch("agent:a", 0, func() (any, error) {
				calls.Add(1)
				<-release
				return "loaded", nil
			})
			if err != nil {
				t.Errorf("Fetch: %v", err)
			}
			results[i] = v
		}(i)
	}
	// Give the goroutines time to pile onto the same key, then release.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("loader ran %d times, want 1 (coalesced)", got)
	}
	for i, v := range results {
		if v != "loaded" {
			t.Errorf("result[%d] = %v, want loaded", i, v)
		}
	}

	// The load time landed under the key's prefix.
	if mon.Stats("fetch:agent").Count == 0 {
		t.Error("fetch timing not recorded on the monitor")
	}

	// Subsequent fetches hit the cache without calling the loader.
	if _, err := c.Fetch("agent:a", 0, func() (any, error) {
		t.Error("loader called on warm cache")
		return nil, nil
	}); err != nil {
		t.Fatalf("warm Fetch: %v", err)
	}
}

func TestFetchErrorNotCached(t *testing.T) {
	c := NewCache()
	boom := errors.New("store down")

	if _, err := c.Fetch("agent:a", 0, func() (any, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("Fetch error = %v, want store down", err)
	}
	// The failed load must not poison the key.
	v, err := c.Fetch("agent:a", 0, func() (any, error) { return "ok", nil })
	if err != nil || v != "ok" {
		t.Errorf("retry Fetch = %v, %v; want ok", v, err)
	}
}

func TestCacheFillToLimit(t *testing.T) {
	c := NewCache(WithCacheSize(100))
	for i := 0; i < 150; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	if got := c.Stats().Size; got != 100 {
		t.Errorf("size = %d, want capped at 100", got)
	}
	// The newest keys survive.
	if _, ok := c.Get("k149"); !ok {
		t.Error("newest key evicted")
	}
	if _, ok := c.Get("k0"); ok {
		t.Error("oldest key survived past capacity")
	}
}
