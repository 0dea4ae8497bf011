package prometheus

import (
	"github.com/marmos91/streamcore/internal/fetcher"
	"github.com/marmos91/streamcore/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterFetcherMetricsConstructor(newFetcherMetrics)
}

type fetcherMetrics struct {
	fetches *prometheus.CounterVec // label: source = cache|remote
}

func newFetcherMetrics() fetcher.Metrics {
	reg := metrics.GetRegistry()

	return &fetcherMetrics{
		fetches: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamcore_fetcher_fetches_total",
				Help: "Total number of chunk fetches by source",
			},
			[]string{"source"},
		),
	}
}

func (m *fetcherMetrics) ObserveFetch(cacheHit bool) {
	source := "remote"
	if cacheHit {
		source = "cache"
	}
	m.fetches.WithLabelValues(source).Inc()
}
