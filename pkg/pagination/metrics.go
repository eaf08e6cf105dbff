package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for scroll pagination.
var (
	scrollTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "browser_scroll_ticks_total",
		Help: "Scroll ticks by outcome (far, gate_closed, no_source, requested)",
	}, []string{"outcome"})

	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "browser_pages_total",
		Help: "Page fetch completions by source kind and result (items, empty, error, stale)",
	}, []string{"source", "result"})

	pageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "browser_page_duration_seconds",
		Help:    "Page fetch duration in seconds by source kind",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"source"})

	sourceSwapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "browser_source_swaps_total",
		Help: "Source swaps by source kind",
	}, []string{"source"})
)
