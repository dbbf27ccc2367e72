package metrics

import "github.com/prometheus/client_golang/prometheus"

// Grid run Prometheus metrics.
var (
	CellRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heatgrid",
			Name:      "cell_requests_total",
			Help:      "Total number of per-cell backend requests",
		},
		[]string{"status"}, // "ok" / "failed" / "skipped"
	)

	CellRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "heatgrid",
			Name:      "cell_request_duration_seconds",
			Help:      "Per-cell backend request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heatgrid",
			Name:      "runs_total",
			Help:      "Total number of grid runs",
		},
		[]string{"status"}, // "ok" / "partial" / "canceled"
	)

	RunCells = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "heatgrid",
			Name:      "run_cells",
			Help:      "Cells scheduled per run",
			Buckets:   []float64{1, 4, 9, 16, 25, 50, 100, 200},
		},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "heatgrid",
			Name:      "active_sessions",
			Help:      "Grid sessions currently held in memory",
		},
	)

	CatalogCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heatgrid",
			Name:      "catalog_cache_total",
			Help:      "Facet catalog cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var gridMetricsRegistered bool

// RegisterGridMetrics registers Prometheus grid metrics. Must be called once from main.
func RegisterGridMetrics() {
	if gridMetricsRegistered {
		return
	}
	prometheus.MustRegister(CellRequestsTotal)
	prometheus.MustRegister(CellRequestDuration)
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunCells)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(CatalogCacheTotal)
	gridMetricsRegistered = true
}
