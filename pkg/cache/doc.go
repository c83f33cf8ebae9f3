// Package cache provides the key/value stores and the cache key codec used by
// the request pipeline.
//
// A cached resource is made of up to three entries sharing one logical key
// (the request URI) and differing only by Kind:
//
//   - KindETag: the upstream ETag, sent back as If-None-Match
//   - KindResponse: the canonical JSON body replayed on 304
//   - KindTime: when the response was last written (grace period)
//
// # Keys
//
//	key := cache.NewKey(cache.KindResponse, "https://api.github.com/user/repos")
//	raw := key.Raw()                         // opaque base64 string
//	timeKey := key.Switch(cache.KindTime)    // same URI, other kind
//
//	parsed, err := cache.ParseKey(raw)
//	if errors.Is(err, cache.ErrMalformedKey) {
//		// never addressed by this package
//	}
//
// # Stores
//
//	// Redis (shared between instances)
//	store, err := cache.NewRedisStore(redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	}))
//
//	// Embedded (single process)
//	store, err := cache.NewMemoryStore(10_000, 24*time.Hour)
//
// Stores report a missing key as ok == false with a nil error, so "not cached"
// and "store failed" are always distinguishable.
//
// # Metrics
//
//   - gitfeed_cache_hits_total{backend}
//   - gitfeed_cache_misses_total{backend}
//   - gitfeed_cache_writes_total{backend}
//   - gitfeed_cache_errors_total{backend, operation}
package cache
