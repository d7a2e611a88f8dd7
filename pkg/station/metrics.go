package station

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StationReads tracks station reads by mode and where the answer came from
	StationReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transit_station_reads_total",
			Help: "Total number of station reads",
		},
		[]string{"type", "mode", "source"}, // mode: "normal", "fresh", "bbox"; source: "cache", "remote", "error"
	)

	// GlobalRefreshes tracks full collection refreshes
	GlobalRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transit_station_global_refreshes_total",
			Help: "Total number of global station refreshes",
		},
		[]string{"type", "result"},
	)
)
