// Package cache provides an optional Redis cache for API-Football responses.
//
// Only reference endpoints (countries, leagues, teams, squads, player season
// lists and fixture lists) are cached; see TTLFor. A cache hit is served
// without acquiring an API key, so repeated runs that enumerate the same
// reference data do not spend per-minute or daily quota.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient, cache.WithTTL("fixtures", 10*time.Minute))
//
//	params := url.Values{"team": []string{"1504"}}
//	entry, err := manager.GetEnvelope(ctx, "players/squads", params)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then:
//		_, _ = manager.SetEnvelope(ctx, "players/squads", params, body)
//	}
//
// SetEnvelope skips endpoints without a TTL and envelopes whose errors
// member is not empty.
//
// # Metrics
//
//   - football_cache_hits_total{endpoint} - Cache hits
//   - football_cache_misses_total - Cache misses
//   - football_cache_written_bytes_total - Bytes written
//   - football_cache_errors_total{operation} - Cache operation errors
package cache
