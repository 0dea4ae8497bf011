package metrics

import "github.com/marmos91/streamcore/internal/cache"

// NewCacheMetrics creates a new Prometheus-backed cache.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called). When
// nil is returned, callers should pass nil into cache.New, which results
// in zero overhead.
func NewCacheMetrics() cache.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusCacheMetrics()
}

// newPrometheusCacheMetrics is filled in by pkg/metrics/prometheus/cache.go
// during package initialization. The indirection avoids an import cycle:
// pkg/metrics/prometheus imports this package to register its constructors
// and reach the registry, so this package cannot import it back.
var newPrometheusCacheMetrics func() cache.Metrics

// RegisterCacheMetricsConstructor registers the Prometheus cache metrics
// constructor. Called by pkg/metrics/prometheus's init.
func RegisterCacheMetricsConstructor(constructor func() cache.Metrics) {
	newPrometheusCacheMetrics = constructor
}
