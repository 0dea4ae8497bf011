package logger

import (
	"log/slog"
)

// Standard field keys for structured logging. Use these keys consistently
// across log statements so they line up for aggregation and querying.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Stream / chunk addressing
	KeyStreamID    = "stream_id"
	KeyChunkIndex  = "chunk_index"
	KeyDCID        = "dc_id"
	KeyOffset      = "offset"
	KeySize        = "size"
	KeyMimeType    = "mime_type"
	KeyTotalChunks = "total_chunks"

	// Session pool
	KeySessionID = "session_id"
	KeyPoolSize  = "pool_size"
	KeyConnected = "connected"

	// Retry / backoff
	KeyAttempt    = "attempt"
	KeyMaxRetries = "max_retries"
	KeyBackoffMs  = "backoff_ms"
	KeyRetryAfter = "retry_after"

	// Cache layer
	KeyCacheHit      = "cache_hit"
	KeyCacheSize     = "cache_size"
	KeyCacheCapacity = "cache_capacity"
	KeyEvicted       = "evicted"

	// HTTP / range server
	KeyMethod     = "method"
	KeyPath       = "path"
	KeyStatus     = "status"
	KeyRangeStart = "range_start"
	KeyRangeEnd   = "range_end"
	KeyClientIP   = "client_ip"
	KeyRequestID  = "request_id"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyComponent  = "component"
	KeyBytes      = "bytes"
)

// Err returns a slog.Attr for an error, or a zero Attr for a nil error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// StreamID returns a slog.Attr for a stream identifier.
func StreamID(id string) slog.Attr {
	return slog.String(KeyStreamID, id)
}

// ChunkIndex returns a slog.Attr for a chunk index.
func ChunkIndex(idx uint32) slog.Attr {
	return slog.Any(KeyChunkIndex, idx)
}

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Component returns a slog.Attr identifying the emitting subsystem.
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}
