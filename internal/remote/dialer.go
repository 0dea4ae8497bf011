package remote

import "context"

// RawClient is the low-level wire client a production Dialer forwards to.
// The host process supplies a concrete RawClient (backed by whatever
// authenticated RPC library it links against); this module never imports
// one directly, per the capability-set boundary in DESIGN.md.
type RawClient interface {
	Authenticate(ctx context.Context) (Credential, error)
	Connect(ctx context.Context, cred Credential, dcID int32) error
	Disconnect() error
	Ping(ctx context.Context, cred Credential) bool
	ResolveDocument(ctx context.Context, chatID, messageID int64) (Document, error)
	DownloadChunk(ctx context.Context, dcID int32, handle Handle, offset int64, requestSize int32) ([]byte, error)
}

// Dialer adapts a pool of RawClient connections, one per session slot, to
// the Transport interface. It is the only production-shaped implementation
// of Transport in this module; everything else in the core depends on the
// Transport interface rather than on Dialer or RawClient directly.
type Dialer struct {
	newClient func() RawClient
	clients   map[int]RawClient
}

// NewDialer builds a Dialer that creates one RawClient per session slot on
// first use via newClient.
func NewDialer(newClient func() RawClient) *Dialer {
	return &Dialer{
		newClient: newClient,
		clients:   make(map[int]RawClient),
	}
}

func (d *Dialer) clientFor(sessionIndex int) RawClient {
	if c, ok := d.clients[sessionIndex]; ok {
		return c
	}
	c := d.newClient()
	d.clients[sessionIndex] = c
	return c
}

func (d *Dialer) Authenticate(ctx context.Context) (Credential, error) {
	return d.clientFor(0).Authenticate(ctx)
}

func (d *Dialer) Connect(ctx context.Context, sessionIndex int, cred Credential) error {
	return d.clientFor(sessionIndex).Connect(ctx, cred, 0)
}

func (d *Dialer) Liveness(ctx context.Context, cred Credential) bool {
	return d.clientFor(0).Ping(ctx, cred)
}

func (d *Dialer) Disconnect(sessionIndex int) error {
	c, ok := d.clients[sessionIndex]
	if !ok {
		return nil
	}
	return c.Disconnect()
}

func (d *Dialer) ResolveDocument(ctx context.Context, sessionIndex int, chatID, messageID int64) (Document, error) {
	return d.clientFor(sessionIndex).ResolveDocument(ctx, chatID, messageID)
}

func (d *Dialer) DownloadChunk(ctx context.Context, sessionIndex int, dcID int32, handle Handle, offset int64, requestSize int32) ([]byte, error) {
	return d.clientFor(sessionIndex).DownloadChunk(ctx, dcID, handle, offset, requestSize)
}
