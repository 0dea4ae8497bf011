package prometheus

import (
	"github.com/marmos91/streamcore/internal/rangeserver"
	"github.com/marmos91/streamcore/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterRangeServerMetricsConstructor(newRangeServerMetrics)
}

type rangeServerMetrics struct {
	bytesServed prometheus.Counter
}

func newRangeServerMetrics() rangeserver.Metrics {
	reg := metrics.GetRegistry()

	return &rangeServerMetrics{
		bytesServed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "streamcore_rangeserver_bytes_served_total",
				Help: "Total number of body bytes written to range server responses",
			},
		),
	}
}

func (m *rangeServerMetrics) ObserveBytesServed(bytes int64) {
	m.bytesServed.Add(float64(bytes))
}
