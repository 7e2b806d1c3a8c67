// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of document store operations",
		},
		[]string{"collection", "operation", "status"},
	)

	MatchQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_queries_total",
			Help: "Total number of matching service queries",
		},
		[]string{"query", "status"},
	)

	MatchQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "match_query_duration_seconds",
			Help: "Duration of matching service queries in seconds",
		},
		[]string{"query"},
	)

	ActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_active_subscriptions",
			Help: "Number of live store subscriptions currently open",
		},
	)

	DirectoryCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_cache_lookups_total",
			Help: "User directory lookups by cache outcome",
		},
		[]string{"outcome"},
	)
)
