package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "catalog"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// MutationsTotal counts create/update/delete attempts per entity and outcome.
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Catalog mutations by entity, kind and outcome",
		},
		[]string{"entity", "kind", "outcome"},
	)

	QueryCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_lookups_total",
			Help:      "Query cache lookups by entity and result (hit, stale, miss)",
		},
		[]string{"entity", "result"},
	)

	ImageUploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "image_upload_bytes",
			Help:      "Size of accepted image uploads",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 2, 7),
		},
	)

	ReviewsAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_applied_total",
			Help:      "Review events folded into product ratings, by outcome",
		},
		[]string{"outcome"},
	)
)

func ObserveCacheLookup(entity, result string) {
	QueryCacheLookups.WithLabelValues(entity, result).Inc()
}
