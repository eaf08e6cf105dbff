// Package cache provides a Redis-backed response cache for tree node data.
//
// Folder listings change rarely while a user walks the same branches again and
// again, so node responses are kept in Redis and revalidated with conditional
// requests once they expire:
//
//   - Entries live until their Expires time (Cache-Control max-age, Expires
//     header, or the manager's default TTL)
//   - Expired entries are kept for a grace period so they can be revalidated
//     with If-None-Match / If-Modified-Since
//   - A 304 Not Modified response refreshes the entry's TTL
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Endpoint:    "/ajax/folders",
//		QueryParams: url.Values{"id": []string{"folder-4"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the server
//	}
//
// # Metrics
//
//   - browser_cache_hits_total{freshness} - Cache hits ("fresh" or "stale")
//   - browser_cache_misses_total - Cache misses
//   - browser_cache_stored_bytes - Bytes written to the cache
//   - browser_cache_not_modified_total - Successful revalidations
//   - browser_cache_errors_total{operation} - Cache operation errors
package cache
