package metrics

import "github.com/marmos91/streamcore/internal/fetcher"

// NewFetcherMetrics creates a new Prometheus-backed fetcher.Metrics
// instance, or nil when metrics are not enabled.
func NewFetcherMetrics() fetcher.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusFetcherMetrics()
}

var newPrometheusFetcherMetrics func() fetcher.Metrics

// RegisterFetcherMetricsConstructor registers the Prometheus fetcher
// metrics constructor. Called by pkg/metrics/prometheus's init.
func RegisterFetcherMetricsConstructor(constructor func() fetcher.Metrics) {
	newPrometheusFetcherMetrics = constructor
}
