// Package cache provides a Redis-backed store for provider responses.
//
// Entries are JSON documents with an absolute expiry. Redis enforces the
// same expiry as a key TTL, so stale entries disappear on their own; Get
// also treats an entry past its expiry as a miss.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Namespace: "geocode",
//		Params:    url.Values{"address": []string{"1600 amphitheatre parkway"}},
//	}
//
//	var coord query.Coordinate
//	if err := manager.GetJSON(ctx, key, &coord); err == cache.ErrCacheMiss {
//		// resolve, then:
//		_ = manager.SetJSON(ctx, key, coord, 24*time.Hour)
//	}
//
// # Metrics
//
//   - datasource_cache_hits_total{namespace} - Cache hits
//   - datasource_cache_misses_total{namespace} - Cache misses
//   - datasource_cache_size_bytes{namespace} - Bytes written
//   - datasource_cache_errors_total{operation} - Cache operation errors
package cache
