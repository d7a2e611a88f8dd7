// Package metrics provides the Prometheus registry reference and the
// /metrics handler for the transit cache.
// All metrics are defined in their respective packages (cache, explore,
// station, client) to keep the packages independent.
//
// This package documents every metric the module exports.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - transit_cache_hits_total{type} (Counter): Loads that found an entry
//   - transit_cache_misses_total{type} (Counter): Loads that found nothing
//   - transit_cache_writes_total{type} (Counter): Entities written
//   - transit_cache_consistency_warnings_total{type} (Counter): Entries dropped because metadata and payload disagreed
//   - transit_cache_errors_total{operation} (Counter): Storage errors by operation
//
// Exploration Metrics (pkg/explore):
//   - transit_explore_regions_marked_total{type} (Counter): Regions stored
//   - transit_explore_regions_evicted_total{type, reason} (Counter): Regions removed (expired, superseded)
//   - transit_explore_lookups_total{type, explored} (Counter): IsExplored results
//   - transit_explore_errors_total{operation} (Counter): Tracker storage errors
//
// Station Metrics (pkg/station):
//   - transit_station_reads_total{type, mode, source} (Counter): Reads by mode (normal, fresh, bbox) and source (cache, remote, error)
//   - transit_station_global_refreshes_total{type, result} (Counter): Full collection refreshes
//
// Request Metrics (pkg/client):
//   - transit_remote_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - transit_remote_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - transit_remote_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - transit_remote_retries_total{error_class} (Counter): Retry attempts by error class
//   - transit_remote_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - transit_remote_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(transit_cache_hits_total[5m])) /
//   (sum(rate(transit_cache_hits_total[5m])) + sum(rate(transit_cache_misses_total[5m])))
//
//   # Share of bbox reads answered by a global refresh
//   sum(rate(transit_station_reads_total{mode="bbox",source="remote"}[1h])) /
//   sum(rate(transit_station_reads_total{mode="bbox"}[1h]))
//
//   # Consistency warnings (should stay at zero outside concurrent writes)
//   increase(transit_cache_consistency_warnings_total[1h]) > 0
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(transit_remote_request_duration_seconds_bucket[5m]))
package metrics
