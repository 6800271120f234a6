package edunet

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ambiyansyah-risyal/edunet/internal/singleflight"
)

const defaultPendingTimeout = 10 * time.Second

// FetchFunc loads the value for a cache key, typically through a Client call.
type FetchFunc func(ctx context.Context) (any, error)

// CacheOption configures a CacheService.
type CacheOption func(*CacheService)

// WithPendingTimeout bounds how long a caller waits on another caller's
// in-flight fetch before starting its own. Zero disables the fallback.
func WithPendingTimeout(d time.Duration) CacheOption {
	return func(s *CacheService) {
		s.pendingTimeout = d
	}
}

// WithResponseCache uses cache as the backing store. The service takes
// ownership and closes it on Close.
func WithResponseCache(cache *ResponseCache) CacheOption {
	return func(s *CacheService) {
		s.cache = cache
	}
}

// WithCacheLogger logs hits, misses, joins and pending-timeout fallbacks.
func WithCacheLogger(logger Logger) CacheOption {
	return func(s *CacheService) {
		s.logger = loggerOrNop(logger)
	}
}

// WithCacheServiceMetrics reports dedup joins and pending timeouts.
func WithCacheServiceMetrics(mc *MetricsCollector) CacheOption {
	return func(s *CacheService) {
		s.metrics = mc
	}
}

// CacheService combines a ResponseCache with a registry of in-flight
// fetches so that concurrent callers for the same key share one fetch.
// Construct one per application session and pass it to the code that
// needs it; Clear is the single reset point, e.g. on logout.
type CacheService struct {
	cache          *ResponseCache
	flight         *singleflight.Group
	pendingTimeout time.Duration
	logger         Logger
	metrics        *MetricsCollector

	// epochMu orders result stores against Clear: stores hold it shared
	// and re-check the generation, Clear holds it exclusively.
	epochMu sync.RWMutex
	closed  atomic.Bool
}

// NewCacheService creates a service with a 10s pending timeout and a
// ResponseCache swept every 5 minutes unless overridden.
func NewCacheService(opts ...CacheOption) *CacheService {
	s := &CacheService{
		flight:         singleflight.New(),
		pendingTimeout: defaultPendingTimeout,
		logger:         nopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = NewResponseCache(WithCacheMetrics(s.metrics, "default"))
	}
	return s
}

// GetOrFetch returns the cached value for key, or runs fetch to obtain it.
// Concurrent callers for a key share a single fetch and observe the same
// value or error. A caller that waits longer than the pending timeout on
// someone else's fetch abandons it and fetches independently. Successful
// values are stored for ttl; errors are never cached.
//
// fetch runs on a context detached from ctx's cancellation, so a caller
// that gives up does not fail the others waiting on the same fetch.
func (s *CacheService) GetOrFetch(ctx context.Context, key string, fetch FetchFunc, ttl time.Duration) (any, error) {
	for {
		if s.closed.Load() {
			return nil, ErrCacheClosed
		}

		if v, ok := s.cache.Get(key); ok {
			s.logger.Debug("cache hit", "key", key)
			return v, nil
		}

		call, owner := s.flight.Join(key, func(gen uint64) (any, error) {
			return s.load(ctx, key, gen, fetch, ttl)
		})

		if owner {
			s.logger.Debug("cache miss, fetching", "key", key)
			select {
			case <-call.Done():
				return call.Result()
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		s.metrics.RecordDeduplicationHit(s.cache.name)
		s.logger.Debug("joined in-flight fetch", "key", key)

		val, err, done := s.wait(ctx, call)
		if done {
			return val, err
		}

		s.flight.Forget(call)
		s.metrics.RecordPendingTimeout(s.cache.name)
		s.logger.Warn("in-flight fetch exceeded pending timeout, fetching again",
			"key", key, "pendingTimeout", s.pendingTimeout)
	}
}

// wait blocks on call. done is false when the pending timeout elapsed first.
func (s *CacheService) wait(ctx context.Context, call *singleflight.Call) (val any, err error, done bool) {
	var timeout <-chan time.Time
	if s.pendingTimeout > 0 {
		timer := time.NewTimer(s.pendingTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-call.Done():
		val, err = call.Result()
		return val, err, true
	case <-ctx.Done():
		return nil, ctx.Err(), true
	case <-timeout:
		return nil, nil, false
	}
}

func (s *CacheService) load(ctx context.Context, key string, gen uint64, fetch FetchFunc, ttl time.Duration) (any, error) {
	// A fetch that settled between the caller's cache miss and its
	// registration has already stored the value.
	if v, ok := s.cache.lookup(key); ok {
		s.logger.Debug("value stored while registering, fetch skipped", "key", key)
		return v, nil
	}

	val, err := fetch(context.WithoutCancel(ctx))
	if err != nil {
		s.logger.Debug("fetch failed, not cached", "key", key, "error", err)
		return nil, err
	}

	s.epochMu.RLock()
	defer s.epochMu.RUnlock()
	if s.flight.Generation() == gen && !s.closed.Load() {
		s.cache.Set(key, val, ttl)
		s.logger.Debug("fetch stored", "key", key, "ttl", ttl)
	} else {
		s.logger.Debug("cache cleared during fetch, result not stored", "key", key)
	}
	return val, nil
}

// Get returns the cached value for key.
func (s *CacheService) Get(key string) (any, bool) {
	return s.cache.Get(key)
}

// Set stores value under key for ttl.
func (s *CacheService) Set(key string, value any, ttl time.Duration) {
	s.cache.Set(key, value, ttl)
}

// Has reports whether key holds a valid entry.
func (s *CacheService) Has(key string) bool {
	return s.cache.Has(key)
}

// Delete invalidates key, e.g. after a write that changes it. An in-flight
// fetch for key is not affected.
func (s *CacheService) Delete(key string) {
	s.cache.Delete(key)
}

// DeletePrefix invalidates every key starting with prefix.
func (s *CacheService) DeletePrefix(prefix string) int {
	n := s.cache.DeletePrefix(prefix)
	s.logger.Debug("cache prefix invalidated", "prefix", prefix, "removed", n)
	return n
}

// Clear drops every entry and forgets every in-flight fetch. Fetches that
// started before Clear still deliver their result to their callers but
// never populate the cache.
func (s *CacheService) Clear() {
	s.epochMu.Lock()
	s.cache.Clear()
	gen := s.flight.ForgetAll()
	s.epochMu.Unlock()

	s.logger.Info("cache cleared", "generation", gen)
}

// Pending reports whether a fetch for key is in flight.
func (s *CacheService) Pending(key string) bool {
	return s.flight.Pending(key)
}

// Len returns the number of stored entries.
func (s *CacheService) Len() int {
	return s.cache.Len()
}

// Close clears the service and stops the cache sweep. Subsequent
// GetOrFetch calls return ErrCacheClosed.
func (s *CacheService) Close() error {
	s.epochMu.Lock()
	s.closed.Store(true)
	s.cache.Clear()
	s.flight.ForgetAll()
	s.epochMu.Unlock()
	return s.cache.Close()
}

// PrefetchItem describes one key to warm.
type PrefetchItem struct {
	Key   string
	Fetch FetchFunc
	TTL   time.Duration
}

// Prefetch warms items concurrently, at most limit at a time (no bound
// when limit <= 0). It returns the first fetch error.
func (s *CacheService) Prefetch(ctx context.Context, limit int, items ...PrefetchItem) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, item := range items {
		item := item
		g.Go(func() error {
			if _, err := s.GetOrFetch(gctx, item.Key, item.Fetch, item.TTL); err != nil {
				return fmt.Errorf("prefetch %s: %w", item.Key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// GetOrFetch is the typed form of (*CacheService).GetOrFetch.
func GetOrFetch[T any](ctx context.Context, s *CacheService, key string, fetch func(ctx context.Context) (T, error), ttl time.Duration) (T, error) {
	var zero T
	v, err := s.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, ttl)
	if err != nil {
		return zero, err
	}

	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("edunet: cached value for %q is %T, not %T", key, v, zero)
	}
	return typed, nil
}
