// Package streamcore wires the cache, session pool, fetcher, prefetch
// engine, and range server into a single root handle a host process
// constructs once and drives for the lifetime of the process.
package streamcore

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/streamcore/internal/cache"
	"github.com/marmos91/streamcore/internal/fetcher"
	"github.com/marmos91/streamcore/internal/logger"
	"github.com/marmos91/streamcore/internal/prefetch"
	"github.com/marmos91/streamcore/internal/rangeserver"
	"github.com/marmos91/streamcore/internal/remote"
	"github.com/marmos91/streamcore/internal/sessionpool"
	"github.com/marmos91/streamcore/pkg/config"
	"github.com/marmos91/streamcore/pkg/metrics"
)

// StreamRequest is the orchestration surface's request to start serving a
// document over loopback HTTP.
type StreamRequest struct {
	StreamID  string
	ChatID    int64
	MessageID int64
	MimeType  string // optional override; empty defers to the resolved document
	TotalSize int64  // optional hint; 0 defers to the resolved document
	Parts     []Part // only len(Parts) <= 1 is supported in this release
}

// Part identifies one message making up a (possibly multi-part) document.
// Only single-part requests are accepted; see StartStream.
type Part struct {
	MessageID int64
}

// StreamResult is returned by StartStream once the stream is servable.
type StreamResult struct {
	URL  string
	Port int
}

// Core is the root handle: no package-level singletons anywhere in this
// module. A host process constructs exactly one Core and drives its
// lifecycle (StartStream / StopStream / Shutdown).
type Core struct {
	cfg *config.Config

	cache   *cache.ChunkCache
	pool    *sessionpool.Pool
	fetcher *fetcher.Fetcher
	server  *rangeserver.Server

	mu      sync.Mutex
	streams map[string]*activeStream
}

type activeStream struct {
	engine *prefetch.Engine
}

// New builds a Core from cfg, wired against transport. It does not start
// the session pool or the range server; both come up lazily on the first
// StartStream call.
func New(cfg *config.Config, transport remote.Transport) (*Core, error) {
	credDir := cfg.Remote.CredentialDir
	var store *remote.CredentialStore
	var err error
	if credDir != "" {
		store, err = remote.NewCredentialStore(credDir)
	} else {
		store, err = remote.DefaultCredentialStore()
	}
	if err != nil {
		return nil, fmt.Errorf("streamcore: credential store: %w", err)
	}

	c := cache.New(int64(cfg.Streaming.CacheMaxBytes), metrics.NewCacheMetrics())
	pool := sessionpool.New(transport, store)
	pool.SetMetrics(metrics.NewSessionPoolMetrics())
	f := fetcher.New(c, pool, metrics.NewFetcherMetrics())
	srv := rangeserver.New(c, f, metrics.NewRangeServerMetrics())

	return &Core{
		cfg:     cfg,
		cache:   c,
		pool:    pool,
		fetcher: f,
		server:  srv,
		streams: make(map[string]*activeStream),
	}, nil
}

// StartStream ensures the session pool and range server are up, resolves
// the requested document, warms its head and tail, starts a Prefetch
// Engine for it, and returns the loopback URL the host should hand to its
// player.
func (c *Core) StartStream(ctx context.Context, req StreamRequest) (StreamResult, error) {
	if len(req.Parts) > 1 {
		return StreamResult{}, fmt.Errorf("streamcore: multi-part streams are not supported in this release (got %d parts)", len(req.Parts))
	}

	if err := c.pool.EnsurePool(ctx, c.cfg.Streaming.ClientPoolSize); err != nil {
		return StreamResult{}, fmt.Errorf("streamcore: ensure pool: %w", err)
	}
	if err := c.server.Start(); err != nil {
		return StreamResult{}, fmt.Errorf("streamcore: start range server: %w", err)
	}

	sess, ok := c.pool.AnyConnected()
	if !ok {
		return StreamResult{}, fmt.Errorf("streamcore: no connected session available")
	}
	doc, err := sess.ResolveDocument(ctx, req.ChatID, req.MessageID)
	if err != nil {
		return StreamResult{}, fmt.Errorf("streamcore: resolve document: %w", err)
	}

	fileSize := doc.Size
	if req.TotalSize > 0 {
		fileSize = req.TotalSize
	}
	mimeType := doc.MimeType
	if req.MimeType != "" {
		mimeType = req.MimeType
	}

	chunkSize := int64(c.cfg.Streaming.ChunkSize)
	totalChunks := uint32((fileSize + chunkSize - 1) / chunkSize)

	engine := prefetch.New(req.StreamID, doc.Handle, doc.DCID, fileSize, totalChunks, c.fetcher, c.cache)
	engine.WarmUp(ctx)
	engine.Start(ctx, uint32(c.cfg.Streaming.PrefetchChunks))

	stream := &rangeserver.Stream{
		ID:       req.StreamID,
		Handle:   doc.Handle,
		FileSize: fileSize,
		MimeType: mimeType,
		DCID:     doc.DCID,
		Engine:   engine,
	}
	c.server.RegisterStream(stream)

	c.mu.Lock()
	c.streams[req.StreamID] = &activeStream{engine: engine}
	c.mu.Unlock()

	logger.InfoCtx(ctx, "stream started", logger.StreamID(req.StreamID), "port", c.server.Port())

	return StreamResult{
		URL:  fmt.Sprintf("http://127.0.0.1:%d/stream/%s", c.server.Port(), req.StreamID),
		Port: c.server.Port(),
	}, nil
}

// StopStream terminates the stream's prefetch workers, removes its range
// server registration, and purges its chunks from the cache.
func (c *Core) StopStream(streamID string) {
	c.mu.Lock()
	stream, ok := c.streams[streamID]
	delete(c.streams, streamID)
	c.mu.Unlock()

	if !ok {
		return
	}

	stream.engine.Stop()
	c.server.UnregisterStream(streamID)
	c.cache.DeletePrefix(streamID)
}

// Shutdown stops every active stream, clears the cache, closes the range
// server, and disconnects all sessions. Safe to call once at process exit.
func (c *Core) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	streamIDs := make([]string, 0, len(c.streams))
	for id := range c.streams {
		streamIDs = append(streamIDs, id)
	}
	c.mu.Unlock()

	for _, id := range streamIDs {
		c.StopStream(id)
	}

	c.cache.Clear()

	if err := c.server.Shutdown(ctx); err != nil {
		logger.WarnCtx(ctx, "range server shutdown error", logger.Err(err))
	}
	c.pool.Shutdown()

	return nil
}
