package streamcore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/marmos91/streamcore/internal/remote"
	"github.com/marmos91/streamcore/pkg/config"
)

func newTestCore(t *testing.T) (*Core, *remote.MockTransport) {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Remote.CredentialDir = t.TempDir()
	cfg.Streaming.ClientPoolSize = 2
	cfg.Streaming.ChunkSize = 1 << 20
	cfg.Streaming.PrefetchChunks = 2
	cfg.Streaming.TailChunks = 1

	transport := remote.NewMockTransport()
	core, err := New(cfg, transport)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = core.Shutdown(ctx)
	})
	return core, transport
}

func TestStartStreamResolvesDocumentAndServesBytes(t *testing.T) {
	core, transport := newTestCore(t)
	handle := remote.Handle{ID: 42, AccessHash: 99}
	transport.RegisterDocument(1, 2, remote.Document{
		Handle:   handle,
		Size:     3 * (1 << 20),
		MimeType: "video/mp4",
		DCID:     4,
	})

	result, err := core.StartStream(context.Background(), StreamRequest{
		StreamID:  "s1",
		ChatID:    1,
		MessageID: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Port == 0 {
		t.Fatal("expected a non-zero port")
	}
	if result.URL != fmt.Sprintf("http://127.0.0.1:%d/stream/s1", result.Port) {
		t.Fatalf("unexpected URL: %s", result.URL)
	}

	resp, err := http.Get(result.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if int64(len(body)) != 3*(1<<20) {
		t.Fatalf("expected full body length, got %d", len(body))
	}
}

func TestStartStreamRejectsMultiPartRequests(t *testing.T) {
	core, _ := newTestCore(t)

	_, err := core.StartStream(context.Background(), StreamRequest{
		StreamID:  "s1",
		ChatID:    1,
		MessageID: 2,
		Parts:     []Part{{MessageID: 2}, {MessageID: 3}},
	})
	if err == nil {
		t.Fatal("expected an error for a multi-part request")
	}
}

func TestStopStreamPurgesCacheAndRegistration(t *testing.T) {
	core, transport := newTestCore(t)
	handle := remote.Handle{ID: 1, AccessHash: 2}
	transport.RegisterDocument(1, 2, remote.Document{
		Handle:   handle,
		Size:     2 * (1 << 20),
		MimeType: "video/mp4",
		DCID:     1,
	})

	result, err := core.StartStream(context.Background(), StreamRequest{StreamID: "s1", ChatID: 1, MessageID: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	core.StopStream("s1")

	resp, err := http.Get(result.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after stop, got %d", resp.StatusCode)
	}
	if core.cache.Len() != 0 {
		t.Fatalf("expected cache purged after stop, got %d entries", core.cache.Len())
	}
}

func TestShutdownClosesServerAndSessions(t *testing.T) {
	core, transport := newTestCore(t)
	handle := remote.Handle{ID: 1, AccessHash: 2}
	transport.RegisterDocument(1, 2, remote.Document{Handle: handle, Size: 1 << 20, MimeType: "video/mp4", DCID: 1})

	if _, err := core.StartStream(context.Background(), StreamRequest{StreamID: "s1", ChatID: 1, MessageID: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := core.Shutdown(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if core.server.Running() {
		t.Fatal("expected range server to be stopped")
	}
	for i := 0; i < 2; i++ {
		if transport.Connected(i) {
			t.Fatalf("expected session %d to be disconnected after shutdown", i)
		}
	}
}
