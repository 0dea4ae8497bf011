// Package metrics exposes Prometheus-backed instrumentation for the cache,
// fetcher, session pool, and range server without any of those packages
// importing prometheus/client_golang directly. Concrete collectors live in
// pkg/metrics/prometheus and register themselves into this package's
// constructor variables from an init function, breaking what would
// otherwise be an import cycle (prometheus wraps domain types defined
// alongside the domain packages metrics instruments).
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	enabled  atomic.Bool
	regMu    sync.Mutex
	registry *prometheus.Registry
)

// InitRegistry turns metrics on for the process and returns the registry
// every collector will register into. Safe to call more than once; later
// calls return the existing registry.
func InitRegistry() *prometheus.Registry {
	regMu.Lock()
	defer regMu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
		enabled.Store(true)
	}
	return registry
}

// IsEnabled reports whether InitRegistry has been called. Constructors in
// this package use it to return a nil metrics implementation (and hence
// zero overhead) when the process never opted into metrics.
func IsEnabled() bool {
	return enabled.Load()
}

// GetRegistry returns the process-wide registry. Panics if called before
// InitRegistry — every call site is expected to be guarded by IsEnabled.
func GetRegistry() *prometheus.Registry {
	regMu.Lock()
	defer regMu.Unlock()
	if registry == nil {
		panic("metrics: GetRegistry called before InitRegistry")
	}
	return registry
}
