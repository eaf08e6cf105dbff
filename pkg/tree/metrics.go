package tree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for tree loading.
var (
	treeFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "browser_tree_fetches_total",
		Help: "Total node listing fetches by kind (root, node) and result (ok, error, discarded)",
	}, []string{"kind", "result"})

	treeFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "browser_tree_fetch_duration_seconds",
		Help:    "Node listing fetch duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"kind"})

	treeNodesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "browser_tree_nodes_opened_total",
		Help: "Total node-opened events",
	})

	treePathResolutions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "browser_tree_path_resolutions_total",
		Help: "Total resolved path expansions",
	})

	treeTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "browser_tree_state_transitions_total",
		Help: "Loader state transitions by target state",
	}, []string{"state"})
)
