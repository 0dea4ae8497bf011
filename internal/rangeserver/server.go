// Package rangeserver implements the loopback-bound HTTP server that
// answers HEAD and ranged GET requests for registered streams, backed by
// the chunk cache and fetcher rather than any file on disk.
package rangeserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/streamcore/internal/cache"
	"github.com/marmos91/streamcore/internal/fetcher"
	"github.com/marmos91/streamcore/internal/logger"
)

// SeekPrebufChunks is the burst size synchronously fetched before the
// first byte of a cold seek is written to the response.
const SeekPrebufChunks = 10

// MaxConsecutiveFailures bounds how many times the body-emission loop
// retries a stalled byte position before aborting the response.
const MaxConsecutiveFailures = 5

const failureRetryDelay = 500 * time.Millisecond

// Server owns the HTTP listener and the stream registry it serves against.
type Server struct {
	mu       sync.RWMutex
	streams  map[string]*Stream
	cache    *cache.ChunkCache
	fetcher  *fetcher.Fetcher
	metrics  Metrics

	httpServer *http.Server
	listener   net.Listener
	port       int
}

// New builds a Server. It does not start listening until Start is called.
func New(c *cache.ChunkCache, f *fetcher.Fetcher, metrics Metrics) *Server {
	s := &Server{
		streams: make(map[string]*Stream),
		cache:   c,
		fetcher: f,
		metrics: metrics,
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Get("/stream/{streamID}", s.handleStream)
	r.Head("/stream/{streamID}", s.handleStream)

	s.httpServer = &http.Server{Handler: r}
	return s
}

// Start binds to 127.0.0.1 on an ephemeral port and begins serving in the
// background. Calling Start on an already-running Server is a no-op; the
// caller is expected to check Port() first to decide whether to reuse it.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("rangeserver: listen: %w", err)
	}
	s.listener = &noDelayListener{ln.(*net.TCPListener)}
	s.port = ln.Addr().(*net.TCPAddr).Port

	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			logger.Error("range server stopped unexpectedly", logger.Err(err))
		}
	}()
	return nil
}

// Port returns the bound TCP port, or 0 if Start has not been called.
func (s *Server) Port() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.port
}

// Running reports whether the server has an active listener.
func (s *Server) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listener != nil
}

// RegisterStream makes stream reachable at /stream/{stream.ID}.
func (s *Server) RegisterStream(stream *Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[stream.ID] = stream
}

// UnregisterStream removes a stream's registration. The caller is
// responsible for also purging the cache and stopping the engine.
func (s *Server) UnregisterStream(streamID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streams, streamID)
}

func (s *Server) lookup(streamID string) (*Stream, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stream, ok := s.streams[streamID]
	return stream, ok
}

// Shutdown closes the HTTP server and its listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()

	if ln == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// noDelayListener disables Nagle's algorithm on every accepted connection,
// trading a few extra small packets for lower write latency on the
// chunk-sized writes the body-emission loop performs.
type noDelayListener struct {
	*net.TCPListener
}

func (l *noDelayListener) Accept() (net.Conn, error) {
	conn, err := l.TCPListener.AcceptTCP()
	if err != nil {
		return nil, err
	}
	_ = conn.SetNoDelay(true)
	return conn, nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Info("range server request completed",
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyStatus, ww.Status(),
			logger.DurationMs(logger.Duration(start)),
		)
	})
}
