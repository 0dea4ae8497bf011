package remote

import "context"

// Transport is the capability set the Session Pool and Chunk Fetcher depend
// on. There is exactly one production-shaped implementation in this module
// (Dialer, a wiring point for a real client supplied by the host process)
// and one fully worked test implementation (MockTransport). Core code never
// imports a concrete client package directly.
//
// Every method is scoped to a session slot index so a single Transport can
// back an entire Session Pool: slot 0 is the only slot that ever calls
// Authenticate from scratch, every other slot calls Connect with the
// credential slot 0 produced.
type Transport interface {
	// Authenticate performs the full authentication exchange and returns a
	// fresh credential. Implementations must return a *RateLimitError when
	// throttled so the Session Pool can honor the server's wait exactly.
	Authenticate(ctx context.Context) (Credential, error)

	// Connect binds sessionIndex to cred without re-authenticating. Also
	// used to reconnect a session whose transport link dropped.
	Connect(ctx context.Context, sessionIndex int, cred Credential) error

	// Liveness performs a trivial identity lookup to check whether cred is
	// still usable. A false return (not an error) means the credential is
	// stale or corrupt and a fresh Authenticate is required.
	Liveness(ctx context.Context, cred Credential) bool

	// Disconnect tears down sessionIndex's connection state. Safe to call
	// on an already-disconnected slot.
	Disconnect(sessionIndex int) error

	// ResolveDocument resolves a (chatID, messageID) pair to a streamable
	// document using whichever session slot is passed in.
	ResolveDocument(ctx context.Context, sessionIndex int, chatID, messageID int64) (Document, error)

	// DownloadChunk fetches at most requestSize bytes starting at offset
	// from the data center identified by dcID, over sessionIndex's
	// connection. Implementations must not buffer more than requestSize
	// bytes even if the underlying wire call returns a longer sequence.
	DownloadChunk(ctx context.Context, sessionIndex int, dcID int32, handle Handle, offset int64, requestSize int32) ([]byte, error)
}
