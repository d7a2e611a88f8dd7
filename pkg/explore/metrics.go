package explore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RegionsMarked tracks regions inserted by MarkExplored
	RegionsMarked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transit_explore_regions_marked_total",
			Help: "Total number of explored regions stored",
		},
		[]string{"type"},
	)

	// RegionsEvicted tracks removed regions by reason
	RegionsEvicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transit_explore_regions_evicted_total",
			Help: "Total number of explored regions removed",
		},
		[]string{"type", "reason"}, // "expired", "superseded"
	)

	// ExploreLookups tracks IsExplored results
	ExploreLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transit_explore_lookups_total",
			Help: "Total number of exploration lookups",
		},
		[]string{"type", "explored"},
	)

	// ExploreErrors tracks storage errors in the tracker
	ExploreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transit_explore_errors_total",
			Help: "Total number of exploration tracker errors",
		},
		[]string{"operation"}, // "mark", "is_explored", "evict"
	)
)
