package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks loads that found a cached entry, by entity type
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transit_cache_hits_total",
			Help: "Total number of cache loads that found an entry",
		},
		[]string{"type"},
	)

	// CacheMisses tracks loads that found nothing, by entity type
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transit_cache_misses_total",
			Help: "Total number of cache loads that found no entry",
		},
		[]string{"type"},
	)

	// CacheWrites tracks entities written, by entity type
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transit_cache_writes_total",
			Help: "Total number of entities written to the cache",
		},
		[]string{"type"},
	)

	// ConsistencyWarnings tracks metadata/payload mismatches seen on read
	ConsistencyWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transit_cache_consistency_warnings_total",
			Help: "Total number of entries dropped because metadata and payload disagreed",
		},
		[]string{"type"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transit_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "load", "load_bbox", "replace", "contains", "delete"
	)
)
