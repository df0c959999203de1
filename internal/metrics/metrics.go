// Package metrics содержит метрики Prometheus сервиса рекомендаций.
package metrics

import (
	"strconv"
	"time"

	"github.com/DRSN-tech/ml-recommender/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommender_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	// Выдача
	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommender_recommend_duration_seconds",
			Help:    "Duration of cluster retrieval for one query vector",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
	)

	RecommendRowsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommender_rows_returned",
			Help:    "Number of rows returned per granularity",
			Buckets: []float64{0, 1, 5, 10, 15, 25, 50, 75, 100},
		},
		[]string{"granularity"},
	)

	RecommendClusterSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommender_cluster_size",
			Help:    "Size of the predicted cluster per granularity",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"granularity"},
	)

	GranularityLoaded = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recommender_granularity_loaded",
			Help: "Whether the cluster model of a configured granularity is loaded (1) or missing (0)",
		},
		[]string{"granularity"},
	)

	CatalogRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommender_catalog_rows",
			Help: "Number of products in the loaded catalog",
		},
	)

	// Эмбеддинги
	EmbeddingRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_embedding_requests_total",
			Help: "Total number of embedding service calls by outcome",
		},
		[]string{"outcome"}, // "success", "error", "unavailable"
	)

	EmbeddingRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommender_embedding_request_duration_seconds",
			Help:    "Duration of embedding service calls including retries",
			Buckets: prometheus.DefBuckets,
		},
	)

	EmbeddingCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommender_embedding_cache_hits_total",
			Help: "Total number of embedding cache hits",
		},
	)

	EmbeddingCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommender_embedding_cache_misses_total",
			Help: "Total number of embedding cache misses",
		},
	)

	EmbeddingBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommender_embedding_breaker_state",
			Help: "Embedding circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// События
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_events_published_total",
			Help: "Total number of recommendation events by publish result",
		},
		[]string{"result"}, // "success", "error"
	)
)

func RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordSection фиксирует вклад одной гранулярности в выдачу.
func RecordSection(k domain.Granularity, clusterSize, returned int) {
	RecommendClusterSize.WithLabelValues(k.String()).Observe(float64(clusterSize))
	RecommendRowsReturned.WithLabelValues(k.String()).Observe(float64(returned))
}

func SetGranularityLoaded(k domain.Granularity, loaded bool) {
	v := 0.0
	if loaded {
		v = 1
	}
	GranularityLoaded.WithLabelValues(k.String()).Set(v)
}

func RecordEmbeddingRequest(outcome string, duration time.Duration) {
	EmbeddingRequestsTotal.WithLabelValues(outcome).Inc()
	EmbeddingRequestDuration.Observe(duration.Seconds())
}

func RecordEmbeddingCache(hit bool) {
	if hit {
		EmbeddingCacheHits.Inc()
		return
	}
	EmbeddingCacheMisses.Inc()
}

func RecordEventPublish(err error) {
	if err != nil {
		EventsPublishedTotal.WithLabelValues("error").Inc()
		return
	}
	EventsPublishedTotal.WithLabelValues("success").Inc()
}
