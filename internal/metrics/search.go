package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Search Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxdex",
			Name:      "search_requests_total",
			Help:      "Total number of search executions",
		},
		[]string{"category", "mode", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taxdex",
			Name:      "search_duration_seconds",
			Help:      "Search execution duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"category", "mode"},
	)

	SearchHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxdex",
			Name:      "search_hits_total",
			Help:      "Total records returned by searches",
		},
		[]string{"category", "mode"},
	)

	ScrollBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxdex",
			Name:      "scroll_batches_total",
			Help:      "Scroll batches fetched by streamed searches",
		},
		[]string{"category"},
	)

	SchemaCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxdex",
			Name:      "schema_cache_total",
			Help:      "Schema registry lookups",
		},
		[]string{"result"}, // "hit" / "miss" / "stale"
	)

	SchemaFetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxdex",
			Name:      "schema_fetch_errors_total",
			Help:      "Failed schema fetches",
		},
		[]string{"kind"},
	)
)

var registerSearchOnce sync.Once

// RegisterSearchMetrics registers Prometheus search metrics. Safe to call more than once.
func RegisterSearchMetrics() {
	registerSearchOnce.Do(func() {
		prometheus.MustRegister(
			SearchRequestsTotal,
			SearchDuration,
			SearchHitsTotal,
			ScrollBatchesTotal,
			SchemaCacheTotal,
			SchemaFetchErrorsTotal,
		)
	})
}
