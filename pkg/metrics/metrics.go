// Package metrics exposes the Prometheus registry used by the browser packages.
// All metrics are defined in their respective packages (fetch, cache, tree,
// pagination) to maintain modularity and avoid circular dependencies.
//
// This package provides the HTTP handler and a reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the browser packages.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects what Registry holds.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the gathered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(Registry, promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
}

// Metrics Documentation
//
// Fetch Metrics (pkg/fetch):
//   - browser_fetch_requests_total{method, status} (Counter): Remote fetches by method and HTTP status
//   - browser_fetch_request_duration_seconds{method} (Histogram): Fetch duration
//   - browser_fetch_errors_total{class} (Counter): Errors by class (client, server, network, decode)
//   - browser_fetch_retries_total{error_class} (Counter): Transport retry attempts
//   - browser_fetch_cache_served_total (Counter): Fetches answered from the response cache
//
// Cache Metrics (pkg/cache):
//   - browser_cache_hits_total{freshness} (Counter): Cache hits, fresh or stale
//   - browser_cache_misses_total (Counter): Cache misses
//   - browser_cache_stored_bytes (Gauge): Bytes written by the last store
//   - browser_cache_not_modified_total (Counter): 304 Not Modified revalidations
//   - browser_cache_errors_total{operation} (Counter): Cache operation errors
//
// Tree Metrics (pkg/tree):
//   - browser_tree_fetches_total{kind, result} (Counter): Node listing fetches (root/node, ok/error/discarded)
//   - browser_tree_fetch_duration_seconds{kind} (Histogram): Node listing fetch duration
//   - browser_tree_nodes_opened_total (Counter): Node-opened events
//   - browser_tree_path_resolutions_total (Counter): Resolved path expansions
//   - browser_tree_state_transitions_total{state} (Counter): Loader state transitions
//
// Pagination Metrics (pkg/pagination):
//   - browser_scroll_ticks_total{outcome} (Counter): Scroll ticks (far, no_source, gate_closed, requested)
//   - browser_pages_total{source, result} (Counter): Completed pages (items, empty, error, stale)
//   - browser_page_duration_seconds{source} (Histogram): Page fetch duration
//   - browser_source_swaps_total{source} (Counter): Source swaps
//
// Example Prometheus Queries:
//
//   # Share of scroll ticks suppressed by the gate
//   rate(browser_scroll_ticks_total{outcome="gate_closed"}[5m]) /
//   sum(rate(browser_scroll_ticks_total[5m]))
//
//   # Stale page completions after navigation
//   rate(browser_pages_total{result="stale"}[5m])
//
//   # Failed tree fetches (stalled path expansions)
//   rate(browser_tree_fetches_total{result="error"}[5m])
//
//   # P95 page latency
//   histogram_quantile(0.95, rate(browser_page_duration_seconds_bucket[5m]))
//
//   # Node data cache hit rate
//   sum(rate(browser_cache_hits_total[5m])) /
//   (sum(rate(browser_cache_hits_total[5m])) + sum(rate(browser_cache_misses_total[5m])))
