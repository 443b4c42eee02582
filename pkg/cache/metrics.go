package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts reads served from a fresh entry.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "menubot_catalog_cache_hits_total",
			Help: "Total number of catalog reads served from cache",
		},
	)

	// CacheMisses counts reads that needed a refresh.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "menubot_catalog_cache_misses_total",
			Help: "Total number of catalog reads that found no fresh entry",
		},
	)

	// CacheRefreshes counts refreshes by result.
	CacheRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menubot_catalog_refreshes_total",
			Help: "Total number of catalog refreshes by result",
		},
		[]string{"result"}, // "stored", "partial", "discarded"
	)

	// SharedRefreshes counts callers that joined a refresh started by another caller.
	SharedRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "menubot_catalog_shared_refreshes_total",
			Help: "Total number of catalog reads that shared an in-flight refresh",
		},
	)

	// Invalidations counts explicit invalidations.
	Invalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "menubot_catalog_invalidations_total",
			Help: "Total number of explicit catalog cache invalidations",
		},
	)
)
