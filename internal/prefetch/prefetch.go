// Package prefetch implements the per-stream background worker pool that
// keeps the chunk cache ahead of playback without the range server ever
// having to block on a remote download.
package prefetch

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/streamcore/internal/cache"
	"github.com/marmos91/streamcore/internal/fetcher"
	"github.com/marmos91/streamcore/internal/logger"
	"github.com/marmos91/streamcore/internal/remote"
)

const (
	// ParallelWorkers is the number of long-lived worker goroutines a
	// running Engine keeps per stream.
	ParallelWorkers = 9

	// PrefetchChunks is the size of the head warm-up group.
	PrefetchChunks = 50

	// TailChunks is the size of the tail warm-up group, covering
	// container formats that store their index at end-of-file.
	TailChunks = 3

	// LookaheadChunks bounds how far the cursor may run ahead of playback
	// before a drift correction repositions it.
	LookaheadChunks = 250

	workerIdleSleep = 30 * time.Millisecond
	workerThrottle  = 30 * time.Millisecond
)

// Engine owns the prefetch state and worker pool for a single stream.
type Engine struct {
	streamID string
	handle   remote.Handle
	dcID     int32
	fileSize int64
	totalChunks uint32

	fetcher *fetcher.Fetcher
	cache   *cache.ChunkCache

	mu             sync.Mutex
	cursor         uint32
	playbackChunk  uint32
	seekGeneration uint64
	running        bool

	wg sync.WaitGroup
}

// New builds an Engine for one stream. totalChunks is ceil(fileSize / ChunkSize).
func New(streamID string, handle remote.Handle, dcID int32, fileSize int64, totalChunks uint32, f *fetcher.Fetcher, c *cache.ChunkCache) *Engine {
	return &Engine{
		streamID:    streamID,
		handle:      handle,
		dcID:        dcID,
		fileSize:    fileSize,
		totalChunks: totalChunks,
		fetcher:     f,
		cache:       c,
	}
}

// WarmUp fetches the head PrefetchChunks and tail TailChunks groups in
// parallel, using the same parallelism as the steady-state worker pool.
// Call this once, before Start, so index atoms stored at end-of-file are
// already cached by the time playback begins.
func (e *Engine) WarmUp(ctx context.Context) {
	indices := make([]uint32, 0, PrefetchChunks+TailChunks)
	for i := uint32(0); i < PrefetchChunks && i < e.totalChunks; i++ {
		indices = append(indices, i)
	}
	var tailStart uint32
	if e.totalChunks > TailChunks {
		tailStart = e.totalChunks - TailChunks
	}
	for i := tailStart; i < e.totalChunks; i++ {
		if i >= PrefetchChunks {
			indices = append(indices, i)
		}
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, ParallelWorkers)
	for _, idx := range indices {
		idx := idx
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := e.fetcher.Fetch(ctx, e.streamID, e.handle, e.dcID, idx, e.fileSize); err != nil {
				logger.WarnCtx(ctx, "warm-up fetch failed", logger.StreamID(e.streamID), logger.ChunkIndex(idx), logger.Err(err))
			}
		}()
	}
	wg.Wait()
}

// Start sets cursor = fromChunk and launches ParallelWorkers long-lived
// workers. Safe to call only once per Engine.
func (e *Engine) Start(ctx context.Context, fromChunk uint32) {
	e.mu.Lock()
	e.cursor = fromChunk
	e.running = true
	e.mu.Unlock()

	for i := 0; i < ParallelWorkers; i++ {
		e.wg.Add(1)
		go e.workerLoop(ctx)
	}
}

// Stop clears running and waits for every worker to observe it and exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
	e.wg.Wait()
}

// NotifyPlayback records the most recent chunk index the range server
// served to the client. If the cursor has drifted past end-of-stream or
// run more than LookaheadChunks ahead of playback, this bumps
// seek_generation and repositions cursor to chunkIndex.
func (e *Engine) NotifyPlayback(chunkIndex uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playbackChunk = chunkIndex

	if e.cursor >= e.totalChunks || e.cursor > chunkIndex+LookaheadChunks {
		e.seekGeneration++
		e.cursor = chunkIndex
	}
}

// SeekTo repositions both playback_chunk and cursor to chunkIndex and
// bumps seek_generation, used when the range server receives a new Range
// request that isn't a simple continuation of the prior one.
func (e *Engine) SeekTo(chunkIndex uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playbackChunk = chunkIndex
	e.cursor = chunkIndex
	e.seekGeneration++
}

// Stats is a snapshot of the engine's control state, exposed for
// diagnostics and tests.
type Stats struct {
	Cursor         uint32
	PlaybackChunk  uint32
	SeekGeneration uint64
	Running        bool
	Workers        int
}

// Stats returns a snapshot of the engine's current control state.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Cursor:         e.cursor,
		PlaybackChunk:  e.playbackChunk,
		SeekGeneration: e.seekGeneration,
		Running:        e.running,
		Workers:        ParallelWorkers,
	}
}

func (e *Engine) workerLoop(ctx context.Context) {
	defer e.wg.Done()
	for {
		if !e.isRunning() {
			return
		}

		gen, idx, ok := e.nextChunk()
		if !ok {
			time.Sleep(workerIdleSleep)
			continue
		}

		if _, err := e.fetcher.Fetch(ctx, e.streamID, e.handle, e.dcID, idx, e.fileSize); err != nil {
			logger.WarnCtx(ctx, "prefetch fetch failed", logger.StreamID(e.streamID), logger.ChunkIndex(idx), logger.Err(err))
		}

		if e.generationChanged(gen) {
			// cursor already moved elsewhere; abandon this round.
			continue
		}
		time.Sleep(workerThrottle)
	}
}

func (e *Engine) isRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) generationChanged(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seekGeneration != gen
}

// nextChunk atomically reserves the next chunk index worth fetching:
// not already cached, within LookaheadChunks of playback. Chunks that are
// in flight are not checked here; a reserved index that is already being
// downloaded joins that download inside Fetcher.Fetch. Returns ok=false
// when nothing is currently worth reserving.
func (e *Engine) nextChunk() (generation uint64, index uint32, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	generation = e.seekGeneration
	limit := e.playbackChunk + LookaheadChunks
	scanned := uint32(0)

	for e.cursor < e.totalChunks && e.cursor <= limit && scanned < LookaheadChunks {
		idx := e.cursor
		e.cursor++
		scanned++

		key := cache.Key{StreamID: e.streamID, ChunkIndex: idx}
		if !e.cache.Contains(key) {
			return generation, idx, true
		}
	}
	return generation, 0, false
}
