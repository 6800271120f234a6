package edunet

import (
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

const (
	numCacheShards       = 16
	defaultSweepInterval = 5 * time.Minute
)

// cacheEntry is valid while now-storedAt <= ttl.
type cacheEntry struct {
	data     any
	storedAt time.Time
	ttl      time.Duration
}

func (e *cacheEntry) valid(now time.Time) bool {
	return now.Sub(e.storedAt) <= e.ttl
}

type cacheShard struct {
	mu    sync.RWMutex
	store map[string]*cacheEntry
}

// ResponseCacheOption configures a ResponseCache.
type ResponseCacheOption func(*ResponseCache)

// WithSweepInterval sets how often expired entries are removed in the
// background. Zero or negative disables the sweep.
func WithSweepInterval(d time.Duration) ResponseCacheOption {
	return func(c *ResponseCache) {
		c.sweepInterval = d
	}
}

// WithCacheClock replaces time.Now for expiry decisions.
func WithCacheClock(now func() time.Time) ResponseCacheOption {
	return func(c *ResponseCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCacheMetrics reports hits, misses and size under name.
func WithCacheMetrics(mc *MetricsCollector, name string) ResponseCacheOption {
	return func(c *ResponseCache) {
		c.metrics = mc
		c.name = name
	}
}

// ResponseCache is a sharded TTL store of arbitrary values. Expired entries
// are dropped lazily on read and periodically by a background sweep.
type ResponseCache struct {
	shards        []*cacheShard
	now           func() time.Time
	sweepInterval time.Duration
	metrics       *MetricsCollector
	name          string

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewResponseCache creates a cache and starts its sweep loop. Call Close
// to stop the loop.
func NewResponseCache(opts ...ResponseCacheOption) *ResponseCache {
	c := &ResponseCache{
		shards:        make([]*cacheShard, numCacheShards),
		now:           time.Now,
		sweepInterval: defaultSweepInterval,
		name:          "default",
		stop:          make(chan struct{}),
	}
	for i := range c.shards {
		c.shards[i] = &cacheShard{store: make(map[string]*cacheEntry)}
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.sweepInterval > 0 {
		c.wg.Add(1)
		go c.sweepLoop()
	}
	return c
}

func (c *ResponseCache) getShard(key string) *cacheShard {
	hash := fnv.New32a()
	hash.Write([]byte(key))
	return c.shards[hash.Sum32()%uint32(len(c.shards))]
}

// Get returns the value for key if present and not expired. An expired
// entry is deleted.
func (c *ResponseCache) Get(key string) (any, bool) {
	v, ok := c.lookup(key)
	if !ok {
		c.metrics.RecordCacheMiss(c.name)
		return nil, false
	}
	c.metrics.RecordCacheHit(c.name)
	return v, true
}

// Set stores value under key for ttl. A non-positive ttl removes key.
func (c *ResponseCache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		c.Delete(key)
		return
	}

	shard := c.getShard(key)
	shard.mu.Lock()
	shard.store[key] = &cacheEntry{data: value, storedAt: c.now(), ttl: ttl}
	shard.mu.Unlock()
	c.recordSize()
}

// Has reports whether key holds a valid entry, applying the same lazy
// expiry as Get.
func (c *ResponseCache) Has(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

// lookup is Get without hit/miss accounting.
func (c *ResponseCache) lookup(key string) (any, bool) {
	shard := c.getShard(key)
	now := c.now()

	shard.mu.RLock()
	entry, ok := shard.store[key]
	shard.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !entry.valid(now) {
		shard.mu.Lock()
		if shard.store[key] == entry {
			delete(shard.store, key)
		}
		shard.mu.Unlock()
		c.recordSize()
		return nil, false
	}
	return entry.data, true
}

// Delete removes key.
func (c *ResponseCache) Delete(key string) {
	shard := c.getShard(key)
	shard.mu.Lock()
	delete(shard.store, key)
	shard.mu.Unlock()
	c.recordSize()
}

// DeletePrefix removes every key starting with prefix and returns how many
// were removed.
func (c *ResponseCache) DeletePrefix(prefix string) int {
	removed := 0
	for _, shard := range c.shards {
		shard.mu.Lock()
		for key := range shard.store {
			if strings.HasPrefix(key, prefix) {
				delete(shard.store, key)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	c.recordSize()
	return removed
}

// Clear removes every entry.
func (c *ResponseCache) Clear() {
	for _, shard := range c.shards {
		shard.mu.Lock()
		shard.store = make(map[string]*cacheEntry)
		shard.mu.Unlock()
	}
	c.recordSize()
}

// Len returns the number of stored entries, expired or not.
func (c *ResponseCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.store)
		shard.mu.RUnlock()
	}
	return total
}

// Sweep removes every expired entry and returns how many were removed.
func (c *ResponseCache) Sweep() int {
	now := c.now()
	removed := 0
	for _, shard := range c.shards {
		shard.mu.Lock()
		for key, entry := range shard.store {
			if !entry.valid(now) {
				delete(shard.store, key)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	if removed > 0 {
		c.recordSize()
	}
	return removed
}

// Close stops the sweep loop. It is safe to call more than once; the
// cache remains usable afterwards without background expiry.
func (c *ResponseCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
	})
	c.wg.Wait()
	return nil
}

func (c *ResponseCache) sweepLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

func (c *ResponseCache) recordSize() {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordCacheSize(c.name, c.Len())
}
