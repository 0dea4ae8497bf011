package prometheus

import (
	"github.com/marmos91/streamcore/internal/sessionpool"
	"github.com/marmos91/streamcore/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterSessionPoolMetricsConstructor(newSessionPoolMetrics)
}

type sessionPoolMetrics struct {
	authentications prometheus.Counter
	rateLimitWait   prometheus.Histogram
	poolSize        prometheus.Gauge
}

func newSessionPoolMetrics() sessionpool.Metrics {
	reg := metrics.GetRegistry()

	return &sessionPoolMetrics{
		authentications: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "streamcore_sessionpool_authentications_total",
				Help: "Total number of fresh authentication exchanges (excludes credential replay)",
			},
		),
		rateLimitWait: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "streamcore_sessionpool_rate_limit_wait_seconds",
				Help:    "Distribution of rate-limit waits honored by the session pool",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		poolSize: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "streamcore_sessionpool_size",
				Help: "Current number of live sessions in the pool",
			},
		),
	}
}

func (m *sessionPoolMetrics) ObserveAuthenticate() {
	m.authentications.Inc()
}

func (m *sessionPoolMetrics) ObserveRateLimitWaitSeconds(seconds float64) {
	m.rateLimitWait.Observe(seconds)
}

func (m *sessionPoolMetrics) SetPoolSize(size int) {
	m.poolSize.Set(float64(size))
}
