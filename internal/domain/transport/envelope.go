// Package transport provides the domain types for the named message bus
// linking the controller with workers and auxiliary processes (spec.md
// §4.B).
package transport

import "errors"

// Well-known envelope type prefixes (spec.md §6). Components are free to
// suffix these, e.g. "test.execute", "fs.acquire", "browser.request".
const (
	PrefixTest    = "test."
	PrefixFS      = "fs."
	PrefixBrowser = "browser."
	PrefixLog     = "log."

	// TypePeerLost is broadcast locally when a registered child dies.
	TypePeerLost = "peer.lost"
)

// Envelope is the wire-stable shape of every message crossing the bus. The
// Payload is opaque to Transport itself; components decide its shape and
// Transport only moves bytes (see internal/infrastructure/transport/pipe
// for the cross-process cbor framing).
type Envelope struct {
	Type      string `cbor:"type"`
	SourceID  string `cbor:"source_id,omitempty"`
	DestID    string `cbor:"dest_id,omitempty"`
	RequestID string `cbor:"request_id,omitempty"`
	Payload   []byte `cbor:"payload,omitempty"`
}

// Errors returned by Bus operations.
var (
	// ErrTransport indicates a message could not be delivered (spec.md §7
	// TransportError). It is typically fatal to the current test.
	ErrTransport = errors.New("transport: delivery failed")

	// ErrPeerLost indicates the destination child died before a pending
	// send could be acknowledged (spec.md §7 PeerLost).
	ErrPeerLost = errors.New("transport: peer lost")

	// ErrUnknownChild is returned by Send when destId names no registered
	// child.
	ErrUnknownChild = errors.New("transport: unknown child")

	// ErrNotAChild names the failure of an operation that only makes sense
	// in a child process, called in the controller process. No Bus in this
	// module returns it.
	ErrNotAChild = errors.New("transport: process is not a child")
)
