package service

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "clinic_agenda"

// latencyBuckets are tuned for agenda reads, which should stay well under a
// second even for month-wide windows.
var latencyBuckets = []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}

// MetricsService owns a private Prometheus registry. A nil *MetricsService is
// valid and records nothing, so services can be built without metrics.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec

	occurrencesExpanded *prometheus.CounterVec
	seriesSkipped       *prometheus.CounterVec
	detaches            *prometheus.CounterVec

	cacheHitCount  atomic.Uint64
	cacheMissCount atomic.Uint64
}

func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: metricsNamespace}),
	)
	factory := promauto.With(registry)

	m := &MetricsService{
		registry: registry,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route template.",
			Buckets:   latencyBuckets,
		}, []string{"method", "route", "status"}),
		cacheLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "read_seconds",
			Help:      "Redis read latency for agenda views.",
			Buckets:   latencyBuckets,
		}),
		cacheWrite: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "write_seconds",
			Help:      "Redis write latency for agenda views.",
			Buckets:   latencyBuckets,
		}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result.",
		}, []string{"result"}),
		dbQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query latency by query name.",
			Buckets:   latencyBuckets,
		}, []string{"query"}),
		occurrencesExpanded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "occurrences_expanded_total",
			Help:      "Occurrences produced by window expansion.",
		}, []string{"kind"}),
		seriesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "series_skipped_total",
			Help:      "Recurring series left out of an expansion.",
		}, []string{"reason"}),
		detaches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "occurrence_detaches_total",
			Help:      "Occurrences detached from a recurring series.",
		}, []string{"operation"}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "cache",
		Name:      "hit_ratio",
		Help:      "Share of cache lookups served from Redis since start.",
	}, m.cacheHitRatio)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// RecordCacheOperation records one cache read and whether it hit.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHitCount.Add(1)
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheMissCount.Add(1)
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordExpansion counts occurrences returned by a window expansion.
func (m *MetricsService) RecordExpansion(virtual, materialized int) {
	if m == nil {
		return
	}
	m.occurrencesExpanded.WithLabelValues("virtual").Add(float64(virtual))
	m.occurrencesExpanded.WithLabelValues("materialized").Add(float64(materialized))
}

// RecordSkippedSeries counts a series left out of an expansion.
func (m *MetricsService) RecordSkippedSeries(reason string) {
	if m == nil {
		return
	}
	m.seriesSkipped.WithLabelValues(reason).Inc()
}

// RecordDetach counts a successful detach by operation (move, status).
func (m *MetricsService) RecordDetach(operation string) {
	if m == nil {
		return
	}
	m.detaches.WithLabelValues(operation).Inc()
}

func (m *MetricsService) cacheHitRatio() float64 {
	hits := m.cacheHitCount.Load()
	total := hits + m.cacheMissCount.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
