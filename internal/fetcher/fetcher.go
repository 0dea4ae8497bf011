// Package fetcher implements the chunk fetch path shared by the range
// server and the prefetch workers: cache lookup, in-flight deduplication,
// and the retry/backoff loop against the session pool.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/marmos91/streamcore/internal/cache"
	"github.com/marmos91/streamcore/internal/logger"
	"github.com/marmos91/streamcore/internal/remote"
	"github.com/marmos91/streamcore/internal/sessionpool"
)

// MaxRetries is the number of download attempts per chunk before giving up.
const MaxRetries = 4

// baseBackoff is the backoff unit; attempt n sleeps baseBackoff * 2^(n-1).
const baseBackoff = 200 * time.Millisecond

// ChunkSize is the fixed chunk size the fetcher requests, except for the
// final chunk of a stream which may be shorter.
const ChunkSize = 1 << 20 // 1 MiB

// Fetcher resolves one chunk at a time: cache hit, in-flight dedup, or a
// bounded retry loop against the session pool.
type Fetcher struct {
	cache   *cache.ChunkCache
	pool    *sessionpool.Pool
	inFlight singleflight.Group
	metrics Metrics
}

// New builds a Fetcher backed by cache and pool. metrics may be nil.
func New(c *cache.ChunkCache, pool *sessionpool.Pool, metrics Metrics) *Fetcher {
	return &Fetcher{cache: c, pool: pool, metrics: metrics}
}

// Fetch resolves one chunk of streamID, dedupes concurrent callers for the
// same key onto a single underlying download, and retries transient
// failures with exponential backoff. Returns nil (not an error) when every
// attempt exhausts MaxRetries, matching the "bytes | null" contract.
func (f *Fetcher) Fetch(ctx context.Context, streamID string, handle remote.Handle, dcID int32, chunkIndex uint32, fileSize int64) ([]byte, error) {
	offset := int64(chunkIndex) * ChunkSize
	if offset >= fileSize {
		return []byte{}, nil
	}

	key := cache.Key{StreamID: streamID, ChunkIndex: chunkIndex}
	if data, ok := f.cache.Get(key); ok {
		f.observeCacheHit()
		return data, nil
	}
	f.observeCacheMiss()

	requestSize := int32(ChunkSize)
	if remaining := fileSize - offset; remaining < ChunkSize {
		requestSize = int32(remaining)
	}

	dedupeKey := fmt.Sprintf("%s/%d", streamID, chunkIndex)
	result, err, _ := f.inFlight.Do(dedupeKey, func() (any, error) {
		// A caller that missed the cache just before a previous fetch of this
		// key finished finds the chunk here instead of downloading it again.
		if data, ok := f.cache.Get(key); ok {
			return data, nil
		}
		data, err := f.fetchWithRetry(ctx, streamID, handle, dcID, chunkIndex, offset, requestSize)
		if err == nil && data != nil {
			f.cache.Insert(key, data)
		}
		return data, err
	})
	if err != nil {
		return nil, err
	}

	data, _ := result.([]byte)
	if data == nil {
		return nil, nil
	}
	return data, nil
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, streamID string, handle remote.Handle, dcID int32, chunkIndex uint32, offset int64, requestSize int32) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= MaxRetries; attempt++ {
		sess, err := f.pool.Acquire(ctx, chunkIndex+uint32(attempt-1))
		if err != nil {
			lastErr = err
		} else {
			data, err := sess.DownloadChunk(ctx, dcID, handle, offset, requestSize)
			if err != nil {
				lastErr = err
			} else if len(data) > 0 {
				return data, nil
			}
		}

		logger.WarnCtx(ctx, "chunk download attempt failed",
			logger.StreamID(streamID), logger.ChunkIndex(chunkIndex), logger.Attempt(attempt))

		if attempt < MaxRetries {
			backoff := baseBackoff << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	if lastErr != nil {
		logger.ErrorCtx(ctx, "chunk download exhausted retries",
			logger.StreamID(streamID), logger.ChunkIndex(chunkIndex), logger.Err(lastErr))
	}
	return nil, nil
}

func (f *Fetcher) observeCacheHit() {
	if f.metrics != nil {
		f.metrics.ObserveFetch(true)
	}
}

func (f *Fetcher) observeCacheMiss() {
	if f.metrics != nil {
		f.metrics.ObserveFetch(false)
	}
}
