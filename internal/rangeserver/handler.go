package rangeserver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/streamcore/internal/cache"
	"github.com/marmos91/streamcore/internal/fetcher"
	"github.com/marmos91/streamcore/internal/logger"
)

const fetcherChunkSize = fetcher.ChunkSize

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")
	stream, ok := s.lookup(streamID)
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", stream.MimeType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(stream.FileSize, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		s.emitBody(r.Context(), w, stream, 0, stream.FileSize-1)
		return
	}

	start, end, err := parseRange(rangeHeader, stream.FileSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestedRangeNotSatisfiable)
		return
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, stream.FileSize))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return
	}
	s.emitBody(r.Context(), w, stream, start, end)
}

// parseRange parses "bytes=S-" or "bytes=S-E", defaulting and clamping E
// to fileSize-1.
func parseRange(header string, fileSize int64) (start, end int64, err error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, fmt.Errorf("rangeserver: malformed Range header")
	}
	spec := strings.TrimPrefix(header, prefix)
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("rangeserver: malformed Range header")
	}

	start, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("rangeserver: malformed range start: %w", err)
	}

	if parts[1] == "" {
		end = fileSize - 1
	} else {
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("rangeserver: malformed range end: %w", err)
		}
	}
	if end > fileSize-1 {
		end = fileSize - 1
	}
	if start < 0 || start > end {
		return 0, 0, fmt.Errorf("rangeserver: range out of bounds")
	}
	return start, end, nil
}

// emitBody runs the seek-burst pre-buffer and then the body-emission loop
// for [start, end] inclusive. Errors are never surfaced to the client:
// once headers are sent, any downstream failure is a silent close.
func (s *Server) emitBody(ctx context.Context, w http.ResponseWriter, stream *Stream, start, end int64) {
	firstChunk := uint32(start / fetcherChunkSize)

	if !s.cache.Contains(cache.Key{StreamID: stream.ID, ChunkIndex: firstChunk}) {
		s.seekBurst(ctx, stream, firstChunk)
	}

	flusher, _ := w.(http.Flusher)
	consecutiveFailures := 0
	bytesWritten := int64(0)
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveBytesServed(bytesWritten)
		}
	}()

	for bytePos := start; bytePos <= end; {
		chunkIndex := uint32(bytePos / fetcherChunkSize)
		offsetInChunk := bytePos % fetcherChunkSize

		stream.Engine.NotifyPlayback(chunkIndex)

		data, ok := s.readChunk(ctx, stream, chunkIndex)
		if !ok {
			consecutiveFailures++
			if consecutiveFailures >= MaxConsecutiveFailures {
				logger.WarnCtx(ctx, "range server aborting response after repeated chunk failures",
					logger.StreamID(stream.ID), logger.ChunkIndex(chunkIndex))
				return
			}
			if !sleepOrDone(ctx, failureRetryDelay) {
				return
			}
			continue
		}
		consecutiveFailures = 0

		if int64(offsetInChunk) >= int64(len(data)) {
			// Chunk shorter than expected (tail chunk); nothing left to
			// serve at this position.
			return
		}
		n := minInt64(int64(len(data))-offsetInChunk, end+1-bytePos)
		if _, err := w.Write(data[offsetInChunk : offsetInChunk+n]); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		bytesWritten += n
		bytePos += n
	}
}

// readChunk tries Cache, then falls through to an inline Fetcher call
// (which itself performs the in-flight dedup and retry loop).
func (s *Server) readChunk(ctx context.Context, stream *Stream, chunkIndex uint32) ([]byte, bool) {
	key := cache.Key{StreamID: stream.ID, ChunkIndex: chunkIndex}
	if data, ok := s.cache.Get(key); ok {
		return data, true
	}
	data, err := s.fetcher.Fetch(ctx, stream.ID, stream.Handle, stream.DCID, chunkIndex, stream.FileSize)
	if err != nil || data == nil {
		return nil, false
	}
	return data, true
}

// seekBurst repositions the prefetch engine and synchronously fetches
// every uncached index in [firstChunk, firstChunk+SeekPrebufChunks) in
// parallel before the caller writes the first response byte.
func (s *Server) seekBurst(ctx context.Context, stream *Stream, firstChunk uint32) {
	stream.Engine.SeekTo(firstChunk)

	total := stream.TotalChunks()
	var wg sync.WaitGroup
	for i := uint32(0); i < SeekPrebufChunks; i++ {
		idx := firstChunk + i
		if idx >= total {
			break
		}
		if s.cache.Contains(cache.Key{StreamID: stream.ID, ChunkIndex: idx}) {
			continue
		}
		wg.Add(1)
		go func(idx uint32) {
			defer wg.Done()
			if _, err := s.fetcher.Fetch(ctx, stream.ID, stream.Handle, stream.DCID, idx, stream.FileSize); err != nil {
				logger.WarnCtx(ctx, "seek-burst fetch failed", logger.StreamID(stream.ID), logger.ChunkIndex(idx), logger.Err(err))
			}
		}(idx)
	}
	wg.Wait()
}

// sleepOrDone sleeps for d, returning false early if ctx is cancelled.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
