package edunet

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// fakeClock is a manually advanced clock for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(clock *fakeClock, opts ...ResponseCacheOption) *ResponseCache {
	base := []ResponseCacheOption{WithSweepInterval(0), WithCacheClock(clock.Now)}
	return NewResponseCache(append(base, opts...)...)
}

func TestResponseCacheGetSet(t *testing.T) {
	cache := newTestCache(newFakeClock())
	defer cache.Close()

	if _, ok := cache.Get("missing"); ok {
		t.Error("Get() on empty cache should miss")
	}

	cache.Set("courses", []string{"math", "khmer"}, time.Minute)
	v, ok := cache.Get("courses")
	if !ok {
		t.Fatal("Get() should hit after Set()")
	}
	if got := v.([]string); len(got) != 2 || got[1] != "khmer" {
		t.Errorf("Get() = %v", got)
	}

	cache.Set("courses", "replaced", time.Minute)
	if v, _ := cache.Get("courses"); v != "replaced" {
		t.Errorf("Set() should overwrite, got %v", v)
	}
}

func TestResponseCacheExpiry(t *testing.T) {
	clock := newFakeClock()
	cache := newTestCache(clock)
	defer cache.Close()

	cache.Set("k", "v", 1000*time.Millisecond)

	clock.Advance(1000 * time.Millisecond)
	if _, ok := cache.Get("k"); !ok {
		t.Error("entry should still be valid exactly at its TTL")
	}

	clock.Advance(100 * time.Millisecond)
	if _, ok := cache.Get("k"); ok {
		t.Error("entry should be expired after its TTL")
	}
	if cache.Len() != 0 {
		t.Errorf("expired entry should be removed on read, Len() = %d", cache.Len())
	}
}

func TestResponseCacheHasExpires(t *testing.T) {
	clock := newFakeClock()
	cache := newTestCache(clock)
	defer cache.Close()

	cache.Set("k", 1, time.Second)
	if !cache.Has("k") {
		t.Error("Has() should report a fresh entry")
	}
	clock.Advance(2 * time.Second)
	if cache.Has("k") {
		t.Error("Has() should not report an expired entry")
	}
	if cache.Len() != 0 {
		t.Error("Has() should drop an expired entry")
	}
}

func TestResponseCacheNonPositiveTTL(t *testing.T) {
	cache := newTestCache(newFakeClock())
	defer cache.Close()

	cache.Set("k", "v", time.Minute)
	cache.Set("k", "gone", 0)
	if cache.Has("k") {
		t.Error("Set() with zero TTL should remove the key")
	}

	cache.Set("other", "v", -time.Second)
	if cache.Len() != 0 {
		t.Errorf("negative TTL should not store, Len() = %d", cache.Len())
	}
}

func TestResponseCacheDelete(t *testing.T) {
	cache := newTestCache(newFakeClock())
	defer cache.Close()

	cache.Set("a", 1, time.Minute)
	cache.Set("b", 2, time.Minute)
	cache.Delete("a")
	cache.Delete("never-set")

	if cache.Has("a") || !cache.Has("b") {
		t.Error("Delete() removed the wrong keys")
	}
}

func TestResponseCacheDeletePrefix(t *testing.T) {
	cache := newTestCache(newFakeClock())
	defer cache.Close()

	for i := 0; i < 5; i++ {
		cache.Set(fmt.Sprintf("course:%d", i), i, time.Minute)
	}
	cache.Set("profile", "me", time.Minute)

	if n := cache.DeletePrefix("course:"); n != 5 {
		t.Errorf("DeletePrefix() = %d, want 5", n)
	}
	if cache.Len() != 1 || !cache.Has("profile") {
		t.Error("DeletePrefix() should keep unrelated keys")
	}
}

func TestResponseCacheClear(t *testing.T) {
	cache := newTestCache(newFakeClock())
	defer cache.Close()

	for i := 0; i < 50; i++ {
		cache.Set(fmt.Sprintf("k%d", i), i, time.Minute)
	}
	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len() after Clear() = %d", cache.Len())
	}
}

func TestResponseCacheSweep(t *testing.T) {
	clock := newFakeClock()
	cache := newTestCache(clock)
	defer cache.Close()

	cache.Set("short-1", 1, time.Second)
	cache.Set("short-2", 2, time.Second)
	cache.Set("long", 3, time.Hour)

	if n := cache.Sweep(); n != 0 {
		t.Errorf("Sweep() before expiry removed %d", n)
	}
	clock.Advance(time.Minute)
	if n := cache.Sweep(); n != 2 {
		t.Errorf("Sweep() = %d, want 2", n)
	}
	if cache.Len() != 1 || !cache.Has("long") {
		t.Error("Sweep() should keep valid entries")
	}
}

func TestResponseCacheBackgroundSweep(t *testing.T) {
	cache := NewResponseCache(WithSweepInterval(10 * time.Millisecond))
	defer cache.Close()

	cache.Set("k", "v", time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for cache.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("background sweep did not remove the expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestResponseCacheCloseIdempotent(t *testing.T) {
	cache := NewResponseCache(WithSweepInterval(time.Millisecond))

	if err := cache.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	cache.Set("k", "v", time.Minute)
	if !cache.Has("k") {
		t.Error("cache should stay usable after Close()")
	}
}

func TestResponseCacheMetrics(t *testing.T) {
	mc := NewMetricsCollector()
	cache := newTestCache(newFakeClock(), WithCacheMetrics(mc, "lessons"))
	defer cache.Close()

	cache.Set("a", 1, time.Minute)
	cache.Set("b", 2, time.Minute)
	cache.Get("a")
	cache.Get("missing")

	if got := testutil.ToFloat64(mc.cacheHits.WithLabelValues("lessons")); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(mc.cacheMisses.WithLabelValues("lessons")); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(mc.cacheSize.WithLabelValues("lessons")); got != 2 {
		t.Errorf("size = %v, want 2", got)
	}
}

func TestResponseCacheConcurrentAccess(t *testing.T) {
	cache := newTestCache(newFakeClock())
	defer cache.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%20)
				cache.Set(key, g, time.Minute)
				cache.Get(key)
				if i%50 == 0 {
					cache.DeletePrefix("k1")
				}
			}
		}(g)
	}
	wg.Wait()

	if cache.Len() > 20 {
		t.Errorf("Len() = %d, want at most 20", cache.Len())
	}
}
