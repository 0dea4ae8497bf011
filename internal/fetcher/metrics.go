package fetcher

// Metrics provides observability for the fetcher's cache hit rate. The
// retry loop's own attempt/backoff logging goes through the structured
// logger instead of metrics, matching how the teacher package logs retry
// attempts rather than counting them in Prometheus.
type Metrics interface {
	// ObserveFetch records a single Fetch call, indicating whether it was
	// served directly from the cache.
	ObserveFetch(cacheHit bool)
}
