// Package cache keeps the last complete catalog in memory for a short
// freshness window.
//
// The cache has the following properties:
//
// - Reads inside the window are served without touching the network
// - A stale or empty cache triggers exactly one refresh, shared by every
//   caller that arrives while it is in flight (singleflight)
// - Only complete snapshots (store and products present) are stored;
//   a missing category list does not block storing
// - A failed refresh leaves the previous state in place
// - Invalidate drops the entry; a refresh that started before the
//   invalidation does not store its result
//
// # Basic Usage
//
//	src := catalog.NewSource(fetcher, "ysg")
//	c := cache.New(src, cache.DefaultConfig("ysg"))
//
//	snap, err := c.Catalog(ctx)
//	if errors.Is(err, catalog.ErrUnavailable) {
//		// show the "temporarily unavailable" notice
//	}
//
//	// user asked for a refresh
//	c.Invalidate()
//
// # Metrics
//
//   - menubot_catalog_cache_hits_total
//   - menubot_catalog_cache_misses_total
//   - menubot_catalog_refreshes_total{result}
//   - menubot_catalog_shared_refreshes_total
//   - menubot_catalog_invalidations_total
package cache
