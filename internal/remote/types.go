// Package remote defines the capability surface the core depends on to
// reach the backing chunked object store. Production code and tests both
// depend on the Transport interface, never on a concrete client — the real
// wire protocol lives behind whatever Transport implementation the host
// process wires in; tests use MockTransport.
package remote

import (
	"errors"
	"fmt"
	"time"
)

// Handle addresses one document in the remote store: the triple a chunked
// download RPC needs to locate bytes, plus the thumbnail tag the metadata
// resolution step always carries even when empty.
type Handle struct {
	ID            int64
	AccessHash    int64
	FileReference []byte
	ThumbSize     string
}

// Document is the metadata returned by resolving a (chat, message) pair to
// a streamable object.
type Document struct {
	Handle   Handle
	Size     int64
	MimeType string
	DCID     int32
}

// Credential is the persisted authentication blob. Field names and JSON
// tags match the on-disk schema exactly: {"session": "...", "ts": 169...}.
type Credential struct {
	Session string `json:"session"`
	TS      int64  `json:"ts"`
}

// Valid reports whether the credential looks like it was ever populated.
// It does not by itself prove the credential still works against the
// remote store — callers should still probe Liveness.
func (c Credential) Valid() bool {
	return c.Session != ""
}

// RateLimitError is returned by Authenticate or Connect when the remote
// store has throttled the caller. RetryAfter is the server-specified wait;
// callers must honor it verbatim rather than applying their own backoff.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

// AsRateLimit reports whether err is (or wraps) a *RateLimitError and
// returns it.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	ok := errors.As(err, &rl)
	return rl, ok
}
