// Package pipe implements domain/transport.ChildLink over a pair of byte
// streams (a spawned child's stdin/stdout from the controller's side, or the
// process's own stdin/stdout from inside a child), framing each Envelope as
// a 4-byte big-endian length prefix followed by its cbor encoding.
//
// cbor (github.com/fxamacker/cbor/v2) is used instead of a text encoding
// because Envelope.Payload carries arbitrary binary blobs (screenshots,
// traces) that must round-trip byte for byte, and because it is already a
// direct dependency of the retrieved example pack.
package pipe

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"

	domain "github.com/danbao/testring-sub000/internal/domain/transport"
)

// maxFrameBytes bounds a single envelope's encoded size, guarding against a
// corrupted length prefix turning into an unbounded allocation.
const maxFrameBytes = 64 << 20 // 64MiB, generous enough for a screenshot

// Link is a ChildLink backed by a readable and a writable byte stream.
type Link struct {
	w io.WriteCloser
	r *bufio.Reader

	writeMu sync.Mutex

	closeOnce sync.Once
	closedCh  chan struct{}
}

// New wraps r/w as a ChildLink. Closing the Link closes w; r is drained by
// Recv until it errors.
func New(r io.Reader, w io.WriteCloser) *Link {
	return &Link{
		w:        w,
		r:        bufio.NewReader(r),
		closedCh: make(chan struct{}),
	}
}

// Send writes one framed Envelope. Safe for concurrent use.
func (l *Link) Send(ctx context.Context, env domain.Envelope) error {
	data, err := cbor.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: encode envelope: %v", domain.ErrTransport, err)
	}
	if len(data) > maxFrameBytes {
		return fmt.Errorf("%w: envelope exceeds %d bytes", domain.ErrTransport, maxFrameBytes)
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if _, err := l.w.Write(header[:]); err != nil {
		l.MarkClosed()
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	if _, err := l.w.Write(data); err != nil {
		l.MarkClosed()
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	return nil
}

// Recv blocks for the next framed Envelope. It returns a wrapped
// ErrTransport (never io.EOF directly) once the stream ends, and marks the
// Link closed so Closed() unblocks any waiters.
func (l *Link) Recv(ctx context.Context) (domain.Envelope, error) {
	var header [4]byte
	if _, err := io.ReadFull(l.r, header[:]); err != nil {
		l.MarkClosed()
		return domain.Envelope{}, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameBytes {
		l.MarkClosed()
		return domain.Envelope{}, fmt.Errorf("%w: frame of %d bytes exceeds limit", domain.ErrTransport, size)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(l.r, buf); err != nil {
		l.MarkClosed()
		return domain.Envelope{}, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	var env domain.Envelope
	if err := cbor.Unmarshal(buf, &env); err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: decode envelope: %v", domain.ErrTransport, err)
	}
	return env, nil
}

// Closed returns a channel closed once the link is known broken, either
// because Send/Recv observed an I/O error or because MarkClosed was called
// directly (e.g. the supervising process observed the child's exit).
func (l *Link) Closed() <-chan struct{} { return l.closedCh }

// MarkClosed closes the underlying writer, if any, and signals Closed().
// Idempotent. w may be nil for a receive-only Link (e.g. wrapping only a
// child's stdout), in which case only closedCh is signaled.
func (l *Link) MarkClosed() {
	l.closeOnce.Do(func() {
		if l.w != nil {
			_ = l.w.Close()
		}
		close(l.closedCh)
	})
}

var _ domain.ChildLink = (*Link)(nil)
