package remote

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// DeterministicChunk reproduces the fixture content used across the test
// suite: chunk i for a given seed is sha256(seed || i) repeated to fill
// length bytes. MockTransport builds every downloaded chunk with it, and
// the mock's own tests call it directly.
func DeterministicChunk(seed string, index uint32, length int) []byte {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s%d", seed, index)))
	out := make([]byte, length)
	for i := range out {
		out[i] = h[i%len(h)]
	}
	return out
}

type docKey struct {
	chatID    int64
	messageID int64
}

// MockTransport is a deterministic, in-memory Transport used by every
// property and scenario test in this module. It never touches the network.
type MockTransport struct {
	mu sync.Mutex

	authCalls        int
	rateLimitAuths   int // number of leading Authenticate calls that fail with RateLimitError
	rateLimitWait    time.Duration
	issuedCredential Credential

	connected map[int]bool

	documents map[docKey]Document

	downloadCalls  map[string]int // offset key -> call count
	failNextN      map[string]int
	downloadLatency time.Duration
	downloadErr     error // sticky error returned by every DownloadChunk call, for fatal-path tests
}

// NewMockTransport returns a MockTransport with no injected failures.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		connected: make(map[int]bool),
		documents: make(map[docKey]Document),
		downloadCalls: make(map[string]int),
		failNextN:     make(map[string]int),
	}
}

// RegisterDocument makes (chatID, messageID) resolve to doc.
func (m *MockTransport) RegisterDocument(chatID, messageID int64, doc Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[docKey{chatID, messageID}] = doc
}

// RateLimitFirstAuths makes the first n Authenticate calls fail with a
// RateLimitError carrying wait as the retry-after duration.
func (m *MockTransport) RateLimitFirstAuths(n int, wait time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimitAuths = n
	m.rateLimitWait = wait
}

// FailChunkNTimes makes the next n DownloadChunk calls for the given
// (dcID, handle, offset) triple return an empty slice (simulating a
// transient fetch error) before succeeding.
func (m *MockTransport) FailChunkNTimes(dcID int32, handle Handle, offset int64, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextN[offsetKey(dcID, handle, offset)] = n
}

// SetDownloadLatency injects a fixed sleep before every DownloadChunk call
// completes, to exercise concurrency without a real network.
func (m *MockTransport) SetDownloadLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadLatency = d
}

// AuthCalls returns the number of Authenticate calls observed so far.
func (m *MockTransport) AuthCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authCalls
}

// DownloadCallCount returns how many DownloadChunk calls were observed for
// the given (dcID, handle, offset) triple.
func (m *MockTransport) DownloadCallCount(dcID int32, handle Handle, offset int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.downloadCalls[offsetKey(dcID, handle, offset)]
}

// TotalDownloadCalls returns the sum of DownloadChunk calls across every key.
func (m *MockTransport) TotalDownloadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.downloadCalls {
		total += n
	}
	return total
}

func offsetKey(dcID int32, handle Handle, offset int64) string {
	return fmt.Sprintf("%d/%d/%d", dcID, handle.ID, offset)
}

func (m *MockTransport) Authenticate(ctx context.Context) (Credential, error) {
	m.mu.Lock()
	m.authCalls++
	attempt := m.authCalls
	rateLimited := attempt <= m.rateLimitAuths
	wait := m.rateLimitWait
	m.mu.Unlock()

	if rateLimited {
		return Credential{}, &RateLimitError{RetryAfter: wait}
	}

	cred := Credential{
		Session: fmt.Sprintf("mock-session-%d", attempt),
		TS:      time.Now().UnixMilli(),
	}
	m.mu.Lock()
	m.issuedCredential = cred
	m.mu.Unlock()
	return cred, nil
}

func (m *MockTransport) Connect(ctx context.Context, sessionIndex int, cred Credential) error {
	if !cred.Valid() {
		return fmt.Errorf("remote: connect with empty credential")
	}
	m.mu.Lock()
	m.connected[sessionIndex] = true
	m.mu.Unlock()
	return nil
}

func (m *MockTransport) Liveness(ctx context.Context, cred Credential) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cred.Valid() && cred.Session == m.issuedCredential.Session
}

func (m *MockTransport) Disconnect(sessionIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected[sessionIndex] = false
	return nil
}

func (m *MockTransport) Connected(sessionIndex int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected[sessionIndex]
}

func (m *MockTransport) ResolveDocument(ctx context.Context, sessionIndex int, chatID, messageID int64) (Document, error) {
	m.mu.Lock()
	doc, ok := m.documents[docKey{chatID, messageID}]
	m.mu.Unlock()
	if !ok {
		return Document{}, fmt.Errorf("remote: no document registered for chat %d message %d", chatID, messageID)
	}
	return doc, nil
}

func (m *MockTransport) DownloadChunk(ctx context.Context, sessionIndex int, dcID int32, handle Handle, offset int64, requestSize int32) ([]byte, error) {
	m.mu.Lock()
	latency := m.downloadLatency
	key := offsetKey(dcID, handle, offset)
	m.downloadCalls[key]++
	shouldFail := m.failNextN[key] > 0
	if shouldFail {
		m.failNextN[key]--
	}
	stickyErr := m.downloadErr
	m.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if stickyErr != nil {
		return nil, stickyErr
	}
	if shouldFail {
		return nil, nil
	}

	seed := fmt.Sprintf("%d:%d", handle.ID, handle.AccessHash)
	// Chunks are 1 MiB apart; a short tail request still belongs to the
	// chunk its offset falls in.
	index := uint32(offset / (1 << 20))
	return DeterministicChunk(seed, index, int(requestSize)), nil
}
