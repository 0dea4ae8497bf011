// Package sessionpool manages a fixed-size pool of authenticated sessions
// against the remote chunked object store, amortizing authentication
// across the pool and routing chunk fetches deterministically by index.
package sessionpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/streamcore/internal/logger"
	"github.com/marmos91/streamcore/internal/remote"
)

// rateLimitSafetyMargin is added on top of the server's retry-after so a
// session that wakes up right at the boundary doesn't immediately get
// rate-limited again.
const rateLimitSafetyMargin = 1 * time.Second

// rateLimitLogInterval is how often a long rate-limit wait logs a
// countdown, rather than staying silent for minutes at a time.
const rateLimitLogInterval = 10 * time.Second

// Session is one slot in the pool: an index, its credential, and whether
// it currently holds a live connection.
type Session struct {
	mu        sync.Mutex
	index     int
	transport remote.Transport
	cred      remote.Credential
	connected bool
}

// Index returns the session's slot index, used for deterministic routing.
func (s *Session) Index() int {
	return s.index
}

// reconnect establishes (or re-establishes) the session's connection using
// its current credential.
func (s *Session) reconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}
	if err := s.transport.Connect(ctx, s.index, s.cred); err != nil {
		return fmt.Errorf("sessionpool: connect session %d: %w", s.index, err)
	}
	s.connected = true
	return nil
}

// DownloadChunk forwards to the transport, reconnecting first if needed.
func (s *Session) DownloadChunk(ctx context.Context, dcID int32, handle remote.Handle, offset int64, requestSize int32) ([]byte, error) {
	if err := s.reconnect(ctx); err != nil {
		return nil, err
	}
	data, err := s.transport.DownloadChunk(ctx, s.index, dcID, handle, offset, requestSize)
	if err != nil {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		return nil, err
	}
	return data, nil
}

// ResolveDocument forwards to the transport, reconnecting first if needed.
func (s *Session) ResolveDocument(ctx context.Context, chatID, messageID int64) (remote.Document, error) {
	if err := s.reconnect(ctx); err != nil {
		return remote.Document{}, err
	}
	return s.transport.ResolveDocument(ctx, s.index, chatID, messageID)
}

func (s *Session) isConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Pool holds a fixed number of Sessions, all sharing one credential once
// authenticated. Index 0 is the only slot that ever calls Authenticate
// from scratch; siblings are opened by replaying its credential.
type Pool struct {
	mu sync.Mutex

	transport remote.Transport
	store     *remote.CredentialStore
	metrics   Metrics

	sessions []*Session
}

// New builds an empty Pool. Call EnsurePool to bring it up to size.
func New(transport remote.Transport, store *remote.CredentialStore) *Pool {
	return &Pool{transport: transport, store: store}
}

// SetMetrics attaches a Metrics sink. Safe to call at most once, before
// any call to EnsurePool.
func (p *Pool) SetMetrics(metrics Metrics) {
	p.metrics = metrics
}

// EnsurePool is idempotent: it raises the pool to desiredSize live
// sessions, authenticating at most once across all calls regardless of how
// many times or how concurrently it's invoked.
func (p *Pool) EnsurePool(ctx context.Context, desiredSize int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.sessions) >= desiredSize {
		return nil
	}

	cred, err := p.currentOrFreshCredential(ctx)
	if err != nil {
		return err
	}

	for i := len(p.sessions); i < desiredSize; i++ {
		sess := &Session{index: i, transport: p.transport, cred: cred}
		if err := p.transport.Connect(ctx, i, cred); err != nil {
			return fmt.Errorf("sessionpool: connect session %d: %w", i, err)
		}
		sess.connected = true
		p.sessions = append(p.sessions, sess)
	}
	if p.metrics != nil {
		p.metrics.SetPoolSize(len(p.sessions))
	}
	return nil
}

// currentOrFreshCredential reuses a persisted credential if it is still
// live, otherwise authenticates from scratch and persists the result.
func (p *Pool) currentOrFreshCredential(ctx context.Context) (remote.Credential, error) {
	if cred, err := p.store.Load(); err == nil && cred.Valid() {
		if p.transport.Liveness(ctx, cred) {
			return cred, nil
		}
		_ = p.store.Clear()
	}
	return p.authenticateWithRateLimitRetry(ctx)
}

func (p *Pool) authenticateWithRateLimitRetry(ctx context.Context) (remote.Credential, error) {
	for {
		cred, err := p.transport.Authenticate(ctx)
		if err == nil {
			if p.metrics != nil {
				p.metrics.ObserveAuthenticate()
			}
			if saveErr := p.store.Save(cred); saveErr != nil {
				logger.WarnCtx(ctx, "failed to persist credential", logger.Err(saveErr))
			}
			return cred, nil
		}

		rl, ok := remote.AsRateLimit(err)
		if !ok {
			return remote.Credential{}, fmt.Errorf("sessionpool: authenticate: %w", err)
		}

		wait := rl.RetryAfter + rateLimitSafetyMargin
		if p.metrics != nil {
			p.metrics.ObserveRateLimitWaitSeconds(wait.Seconds())
		}
		if err := p.waitOutRateLimit(ctx, wait); err != nil {
			return remote.Credential{}, err
		}
	}
}

func (p *Pool) waitOutRateLimit(ctx context.Context, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		step := remaining
		if step > rateLimitLogInterval {
			step = rateLimitLogInterval
		}
		logger.InfoCtx(ctx, "rate limited, waiting", logger.KeyRetryAfter, remaining.String())
		select {
		case <-time.After(step):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Acquire routes deterministically by chunk_index mod pool_size, spreading
// load evenly, and reconnects the chosen session in place if it was
// disconnected.
func (p *Pool) Acquire(ctx context.Context, chunkIndex uint32) (*Session, error) {
	p.mu.Lock()
	if len(p.sessions) == 0 {
		p.mu.Unlock()
		return nil, fmt.Errorf("sessionpool: pool not initialized")
	}
	sess := p.sessions[int(chunkIndex)%len(p.sessions)]
	p.mu.Unlock()

	if err := sess.reconnect(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

// AnyConnected returns the first connected session, used for metadata
// resolution where routing doesn't matter. When no session is connected it
// returns the first session anyway; it reports false only for an empty pool.
func (p *Pool) AnyConnected() (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sess := range p.sessions {
		if sess.isConnected() {
			return sess, true
		}
	}
	if len(p.sessions) > 0 {
		return p.sessions[0], true
	}
	return nil, false
}

// Size returns the number of sessions currently in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Shutdown disconnects every session in the pool.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sess := range p.sessions {
		_ = p.transport.Disconnect(sess.index)
		sess.mu.Lock()
		sess.connected = false
		sess.mu.Unlock()
	}
}
