// Package transport implements the domain/transport.Bus port: a named
// message bus linking the current process to local listeners and to any
// number of registered child processes (spec.md §4.B).
package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	domain "github.com/danbao/testring-sub000/internal/domain/transport"
)

// LocalBroadcaster is the generic pub/sub backbone Bus delegates in-process
// fan-out to. internal/infrastructure/transport/localbus implements it over
// github.com/dmitrymomot/foundation/pkg/broadcast; tests may supply a
// trivial in-memory fake.
type LocalBroadcaster interface {
	// Publish fans env out to every current subscriber. Must not block on a
	// slow subscriber.
	Publish(env domain.Envelope)

	// Subscribe returns a channel of every published Envelope from this
	// point on, and a cancel function that stops delivery and releases the
	// channel.
	Subscribe() (<-chan domain.Envelope, domain.Cancel)
}

type listener struct {
	id       uint64
	typ      string
	fromOnly string // empty means "any source"
	once     bool
	h        domain.Handler
}

// Bus is the application-level message bus. One Bus exists per process; the
// controller process registers one ChildLink per worker/auxiliary process it
// spawns, while each child process runs its own Bus with IsChild() true and
// registers its link to the controller through RegisterChild, so Reply and
// Broadcast reach the controller.
type Bus struct {
	local    LocalBroadcaster
	isChild  bool
	selfID   string
	nextID   uint64
	mu       sync.Mutex
	children map[string]domain.ChildLink
	byTyp    map[string][]*listener

	pendingMu sync.Mutex
	pending   map[string]*pendingSend
}

type sendResult struct {
	env Envelope
	err error
}

type pendingSend struct {
	destID string
	wait   chan sendResult
}

// Envelope is re-exported for call-site convenience.
type Envelope = domain.Envelope

// New creates a Bus. selfID identifies this process in outgoing
// BroadcastFrom/Send calls; isChild marks a child process's own Bus, so
// IsChild() reports true. RegisterChild does not consult isChild.
func New(local LocalBroadcaster, selfID string, isChild bool) *Bus {
	b := &Bus{
		local:    local,
		isChild:  isChild,
		selfID:   selfID,
		children: make(map[string]domain.ChildLink),
		byTyp:    make(map[string][]*listener),
		pending:  make(map[string]*pendingSend),
	}
	ch, _ := local.Subscribe()
	go b.pump(ch)
	return b
}

// pump delivers every locally published envelope to matching listeners and
// resolves any pending Send waiting on its RequestID. It runs for the
// lifetime of the Bus.
func (b *Bus) pump(ch <-chan domain.Envelope) {
	for env := range ch {
		b.resolvePending(env)
		b.dispatch(env)
	}
}

func (b *Bus) resolvePending(env domain.Envelope) {
	if env.RequestID == "" {
		return
	}
	b.pendingMu.Lock()
	p, ok := b.pending[env.RequestID]
	if ok {
		delete(b.pending, env.RequestID)
	}
	b.pendingMu.Unlock()
	if ok {
		p.wait <- sendResult{env: env}
	}
}

func (b *Bus) dispatch(env domain.Envelope) {
	b.mu.Lock()
	matched := make([]*listener, 0, 4)
	remaining := b.byTyp[env.Type][:0:0]
	for _, l := range b.byTyp[env.Type] {
		if l.fromOnly != "" && l.fromOnly != env.SourceID {
			remaining = append(remaining, l)
			continue
		}
		matched = append(matched, l)
		if !l.once {
			remaining = append(remaining, l)
		}
	}
	b.byTyp[env.Type] = remaining
	b.mu.Unlock()

	for _, l := range matched {
		l.h(context.Background(), env)
	}
}

// Broadcast delivers to every local listener and to every registered child.
func (b *Bus) Broadcast(ctx context.Context, typ string, payload []byte) error {
	return b.broadcast(ctx, domain.Envelope{Type: typ, Payload: payload})
}

// BroadcastLocal delivers only to listeners in the current process.
func (b *Bus) BroadcastLocal(typ string, payload []byte) {
	b.local.Publish(domain.Envelope{Type: typ, Payload: payload})
}

// BroadcastFrom is Broadcast annotated with a logical source id.
func (b *Bus) BroadcastFrom(ctx context.Context, typ string, payload []byte, sourceID string) error {
	return b.broadcast(ctx, domain.Envelope{Type: typ, Payload: payload, SourceID: sourceID})
}

func (b *Bus) broadcast(ctx context.Context, env domain.Envelope) error {
	b.local.Publish(env)

	b.mu.Lock()
	links := make([]domain.ChildLink, 0, len(b.children))
	for _, l := range b.children {
		links = append(links, l)
	}
	b.mu.Unlock()

	var firstErr error
	for _, link := range links {
		if err := link.Send(ctx, env); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: %v", domain.ErrTransport, err)
		}
	}
	return firstErr
}

// Send delivers directly to destID and blocks for its reply, correlated by a
// generated RequestID. A child dying while a Send is outstanding resolves
// it with ErrPeerLost (spec.md §4.B).
func (b *Bus) Send(ctx context.Context, destID, typ string, payload []byte) (domain.Envelope, error) {
	b.mu.Lock()
	link, ok := b.children[destID]
	b.mu.Unlock()
	if !ok {
		return domain.Envelope{}, fmt.Errorf("%w: %s", domain.ErrUnknownChild, destID)
	}

	reqID := uuid.NewString()
	wait := make(chan sendResult, 1)
	b.pendingMu.Lock()
	b.pending[reqID] = &pendingSend{destID: destID, wait: wait}
	b.pendingMu.Unlock()

	env := domain.Envelope{Type: typ, SourceID: b.selfID, DestID: destID, RequestID: reqID, Payload: payload}
	if err := link.Send(ctx, env); err != nil {
		b.pendingMu.Lock()
		delete(b.pending, reqID)
		b.pendingMu.Unlock()
		return domain.Envelope{}, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	select {
	case <-ctx.Done():
		b.pendingMu.Lock()
		delete(b.pending, reqID)
		b.pendingMu.Unlock()
		return domain.Envelope{}, ctx.Err()
	case <-link.Closed():
		b.pendingMu.Lock()
		delete(b.pending, reqID)
		b.pendingMu.Unlock()
		return domain.Envelope{}, domain.ErrPeerLost
	case res := <-wait:
		return res.env, res.err
	}
}

// Reply delivers env directly to destID without establishing a new pending
// wait, so a handler answering a Send can hand its RequestID straight back
// to the original caller's own pending map. Used by request/response
// components built on top of Bus (fs-store, worker control, browser-proxy)
// that need to answer a Send rather than originate one.
func (b *Bus) Reply(ctx context.Context, destID string, env domain.Envelope) error {
	b.mu.Lock()
	link, ok := b.children[destID]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownChild, destID)
	}
	if err := link.Send(ctx, env); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	return nil
}

// On registers a persistent listener for typ from any source.
func (b *Bus) On(typ string, h domain.Handler) domain.Cancel {
	return b.register(typ, "", false, h)
}

// Once registers a listener that fires at most once.
func (b *Bus) Once(typ string, h domain.Handler) domain.Cancel {
	return b.register(typ, "", true, h)
}

// OnceFrom registers a one-shot listener scoped to a single source id.
func (b *Bus) OnceFrom(sourceID, typ string, h domain.Handler) domain.Cancel {
	return b.register(typ, sourceID, true, h)
}

func (b *Bus) register(typ, fromOnly string, once bool, h domain.Handler) domain.Cancel {
	id := atomic.AddUint64(&b.nextID, 1)
	l := &listener{id: id, typ: typ, fromOnly: fromOnly, once: once, h: h}

	b.mu.Lock()
	b.byTyp[typ] = append(b.byTyp[typ], l)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		ls := b.byTyp[typ]
		for i, cur := range ls {
			if cur.id == id {
				b.byTyp[typ] = append(ls[:i], ls[i+1:]...)
				return
			}
		}
	}
}

// RegisterChild attaches a child process's link so Broadcast/Send can reach
// it. Watches Closed() and emits the synthetic peer.lost event, canceling
// any pending Send futures targeting that child, per spec.md §4.B.
func (b *Bus) RegisterChild(childID string, link domain.ChildLink) {
	b.mu.Lock()
	b.children[childID] = link
	b.mu.Unlock()

	go b.watchChild(childID, link)
	go b.pumpChild(childID, link)
}

func (b *Bus) watchChild(childID string, link domain.ChildLink) {
	<-link.Closed()

	b.mu.Lock()
	delete(b.children, childID)
	b.mu.Unlock()

	b.failPendingFor(childID)
	b.local.Publish(domain.Envelope{Type: domain.TypePeerLost, SourceID: childID})
}

// pumpChild reads every inbound envelope the child sends and feeds it back
// into this Bus's own dispatch/resolution path, so replies to Send and
// broadcasts originating in the child are observed identically to local
// traffic.
func (b *Bus) pumpChild(childID string, link domain.ChildLink) {
	ctx := context.Background()
	for {
		env, err := link.Recv(ctx)
		if err != nil {
			return
		}
		if env.SourceID == "" {
			env.SourceID = childID
		}
		b.resolvePending(env)
		b.dispatch(env)
	}
}

func (b *Bus) failPendingFor(childID string) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	for id, p := range b.pending {
		if p.destID != childID {
			continue
		}
		p.wait <- sendResult{err: domain.ErrPeerLost}
		delete(b.pending, id)
	}
}

// IsChild reports whether this Bus belongs to a child process.
func (b *Bus) IsChild() bool { return b.isChild }

var _ domain.Bus = (*Bus)(nil)
