// Package edunet is the network access layer shared by the e-learning
// mobile app and the school administration dashboard. It provides:
//
//   - An API client facade (Get, Post, Put, Patch, Delete) with per-verb
//     deadlines, bearer token headers and {success, data, message} envelope
//     unwrapping
//   - Retries with exponential backoff plus additive jitter, bounded by
//     RetryConfig, with bilingual (Khmer and English) display messages
//   - A connectivity pre-flight check: offline calls fail with
//     ErrNoConnection without consuming an attempt
//   - A TTL response cache with lazy expiry and a periodic sweep
//   - A CacheService whose GetOrFetch coalesces concurrent fetches per key,
//     with a pending timeout so one slow fetch cannot block every caller
//   - Prometheus metrics and opt-in structured debug logging
//
// Typical usage:
//
//	monitor := edunet.NewNetworkMonitor(true)
//	client := edunet.New(
//	    edunet.WithBaseURL("https://api.example.edu/api"),
//	    edunet.WithToken(token),
//	    edunet.WithNetworkStatus(monitor),
//	)
//	cache := edunet.NewCacheService()
//	defer cache.Close()
//
//	stats, err := edunet.GetOrFetch(ctx, cache, "dashboard:stats",
//	    func(ctx context.Context) (Stats, error) {
//	        return edunet.Decode[Stats](client.Get(ctx, "/dashboard/stats"))
//	    }, time.Minute)
//
// Errors are *ClientError values. Use errors.Is with the Err* sentinels to
// branch, StatusCode to read the HTTP status and Message for a string
// ready to show to the user.
package edunet
