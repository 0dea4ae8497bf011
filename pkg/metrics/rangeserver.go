package metrics

import "github.com/marmos91/streamcore/internal/rangeserver"

// NewRangeServerMetrics creates a new Prometheus-backed
// rangeserver.Metrics instance, or nil when metrics are not enabled.
func NewRangeServerMetrics() rangeserver.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusRangeServerMetrics()
}

var newPrometheusRangeServerMetrics func() rangeserver.Metrics

// RegisterRangeServerMetricsConstructor registers the Prometheus range
// server metrics constructor. Called by pkg/metrics/prometheus's init.
func RegisterRangeServerMetricsConstructor(constructor func() rangeserver.Metrics) {
	newPrometheusRangeServerMetrics = constructor
}
