package metrics

import "github.com/marmos91/streamcore/internal/sessionpool"

// NewSessionPoolMetrics creates a new Prometheus-backed
// sessionpool.Metrics instance, or nil when metrics are not enabled.
func NewSessionPoolMetrics() sessionpool.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusSessionPoolMetrics()
}

var newPrometheusSessionPoolMetrics func() sessionpool.Metrics

// RegisterSessionPoolMetricsConstructor registers the Prometheus session
// pool metrics constructor. Called by pkg/metrics/prometheus's init.
func RegisterSessionPoolMetricsConstructor(constructor func() sessionpool.Metrics) {
	newPrometheusSessionPoolMetrics = constructor
}
