package transport

import "context"

// Handler processes one delivered Envelope. Handlers must not block the bus
// goroutine (spec.md §4.B) — long work must be scheduled off-bus by the
// handler itself.
type Handler func(ctx context.Context, env Envelope)

// Cancel unregisters a previously installed listener. Calling it more than
// once is a no-op.
type Cancel func()

// ChildLink is what Transport holds per registered child: a bidirectional,
// opaque-framed connection to that child's process. Concrete framing
// (cbor-over-pipe, in-memory channel for tests) lives in the infrastructure
// adapter; Transport only sees Envelopes.
type ChildLink interface {
	// Send delivers env to the child. Returns ErrTransport if the link is
	// broken.
	Send(ctx context.Context, env Envelope) error

	// Recv blocks for the next envelope sent by the child. It returns
	// ErrTransport once the link is closed (process exited or the pipe
	// broke), at which point Transport emits peer.lost for this child.
	Recv(ctx context.Context) (Envelope, error)

	// Closed returns a channel that is closed when the underlying process
	// has exited, independent of whether Recv has already observed EOF.
	Closed() <-chan struct{}
}

// Bus is the domain port every component depends on to talk to the rest of
// the system, matching spec.md §4.B's operation list.
type Bus interface {
	Broadcast(ctx context.Context, typ string, payload []byte) error
	BroadcastLocal(typ string, payload []byte)
	BroadcastFrom(ctx context.Context, typ string, payload []byte, sourceID string) error

	// Send delivers directly to one registered child and waits for its
	// reply envelope (correlated by RequestID), or returns ErrTransport /
	// ErrPeerLost.
	Send(ctx context.Context, destID, typ string, payload []byte) (Envelope, error)

	On(typ string, h Handler) Cancel
	Once(typ string, h Handler) Cancel
	OnceFrom(sourceID, typ string, h Handler) Cancel

	RegisterChild(childID string, link ChildLink)
	IsChild() bool
}
