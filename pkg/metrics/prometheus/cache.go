package prometheus

import (
	"github.com/marmos91/streamcore/internal/cache"
	"github.com/marmos91/streamcore/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterCacheMetricsConstructor(newCacheMetrics)
}

type cacheMetrics struct {
	gets      *prometheus.CounterVec // label: status = hit|miss
	inserts   prometheus.Counter
	insertBytes prometheus.Histogram
	evictions prometheus.Counter
	usedBytes prometheus.Gauge
}

func newCacheMetrics() cache.Metrics {
	reg := metrics.GetRegistry()

	return &cacheMetrics{
		gets: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamcore_cache_gets_total",
				Help: "Total number of chunk cache lookups by outcome",
			},
			[]string{"status"},
		),
		inserts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "streamcore_cache_inserts_total",
				Help: "Total number of chunk cache inserts",
			},
		),
		insertBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "streamcore_cache_insert_bytes",
				Help: "Distribution of chunk sizes inserted into the cache",
				Buckets: []float64{
					4096, 65536, 262144, 524288, 1048576,
				},
			},
		),
		evictions: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "streamcore_cache_evictions_total",
				Help: "Total number of chunk cache entries evicted to stay under budget",
			},
		),
		usedBytes: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "streamcore_cache_used_bytes",
				Help: "Current total size of the chunk cache in bytes",
			},
		),
	}
}

func (m *cacheMetrics) ObserveGet(hit bool) {
	status := "miss"
	if hit {
		status = "hit"
	}
	m.gets.WithLabelValues(status).Inc()
}

func (m *cacheMetrics) ObserveInsert(bytes int) {
	m.inserts.Inc()
	m.insertBytes.Observe(float64(bytes))
}

func (m *cacheMetrics) ObserveEviction() {
	m.evictions.Inc()
}

func (m *cacheMetrics) SetUsedBytes(bytes int64) {
	m.usedBytes.Set(float64(bytes))
}
