// Package localbus adapts github.com/dmitrymomot/foundation/pkg/broadcast's
// generic in-memory pub/sub into the application/transport.LocalBroadcaster
// port used for same-process fan-out (broadcastLocal, on, once).
package localbus

import (
	"context"

	"github.com/dmitrymomot/foundation/pkg/broadcast"

	apptransport "github.com/danbao/testring-sub000/internal/application/transport"
	domain "github.com/danbao/testring-sub000/internal/domain/transport"
)

// defaultBufferSize is the per-subscriber buffer depth. A slow subscriber
// drops messages past this rather than blocking the publisher, which is the
// behavior spec.md §4.B requires ("handlers may not block the bus thread").
const defaultBufferSize = 256

// Broadcaster is the localbus-backed LocalBroadcaster.
type Broadcaster struct {
	b *broadcast.MemoryBroadcaster[domain.Envelope]
}

// New creates a Broadcaster ready to Publish/Subscribe Envelopes.
func New() *Broadcaster {
	return &Broadcaster{b: broadcast.NewMemoryBroadcaster[domain.Envelope](defaultBufferSize)}
}

// Publish fans env out to every current subscriber without blocking.
func (l *Broadcaster) Publish(env domain.Envelope) {
	// Context is only used by the broadcaster to bound the publish call
	// itself, not subscriber delivery; it never blocks on a slow reader.
	l.b.Broadcast(context.Background(), broadcast.Message[domain.Envelope]{Data: env})
}

// Subscribe returns a channel receiving every Envelope published from this
// point on, and a Cancel that stops delivery and releases the subscription.
func (l *Broadcaster) Subscribe() (<-chan domain.Envelope, domain.Cancel) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := l.b.Subscribe(ctx)

	out := make(chan domain.Envelope, defaultBufferSize)
	go func() {
		defer close(out)
		for msg := range sub.Receive(ctx) {
			out <- msg.Data
		}
	}()

	return out, func() {
		cancel()
		_ = sub.Close()
	}
}

// Close releases the underlying broadcaster.
func (l *Broadcaster) Close() error { return l.b.Close() }

var _ apptransport.LocalBroadcaster = (*Broadcaster)(nil)
