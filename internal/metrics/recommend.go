package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recommendation Prometheus metrics.
var (
	RecommendationRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "floramatch",
			Name:      "recommendation_runs_total",
			Help:      "Total number of recommendation runs",
		},
		[]string{"algorithm", "status"},
	)

	RecommendationRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "floramatch",
			Name:      "recommendation_run_duration_seconds",
			Help:      "End-to-end recommendation run duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"algorithm"},
	)

	RecommendationTierSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "floramatch",
			Name:      "recommendation_tier_size",
			Help:      "Number of candidates surfaced per tier",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
		[]string{"algorithm", "tier"},
	)

	RatingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "floramatch",
			Name:      "ratings_total",
			Help:      "Total submitted recommendation ratings",
		},
		[]string{"rating"},
	)
)

var recMetricsRegistered bool

// RegisterRecommendationMetrics registers Prometheus recommendation metrics.
// Must be called once from main.
func RegisterRecommendationMetrics() {
	if recMetricsRegistered {
		return
	}
	prometheus.MustRegister(RecommendationRunsTotal)
	prometheus.MustRegister(RecommendationRunDuration)
	prometheus.MustRegister(RecommendationTierSize)
	prometheus.MustRegister(RatingsTotal)
	recMetricsRegistered = true
}
