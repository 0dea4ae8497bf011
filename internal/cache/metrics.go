package cache

// Metrics provides observability for Cache operations. Implementations can
// forward to Prometheus or any other backend; ChunkCache accepts a nil
// Metrics and skips every observation when its metrics field is nil.
type Metrics interface {
	// ObserveGet records a get, indicating whether it was a hit.
	ObserveGet(hit bool)

	// ObserveInsert records an insert of size bytes.
	ObserveInsert(bytes int)

	// ObserveEviction records a single entry being evicted to stay under
	// the byte budget.
	ObserveEviction()

	// SetUsedBytes reports the cache's current total size.
	SetUsedBytes(bytes int64)
}
