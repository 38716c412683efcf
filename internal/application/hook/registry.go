// Package hook implements the extension-point registry: a mapping from
// declared names to an ordered write-chain followed by a read-chain
// (spec.md §4.A, design note §9).
package hook

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/danbao/testring-sub000/internal/domain/hook"
)

// chain holds the callbacks registered for one extension point, in
// registration order and split by kind so call() can run all writes before
// any reads without re-sorting on every invocation.
type chain struct {
	writes []domain.Callback
	reads  []domain.Callback
}

// Registry owns a fixed set of named extension points. The set is declared
// once at construction (NewRegistry); registering against or calling an
// undeclared name is an error, per spec.md §4.A.
type Registry struct {
	mu     sync.Mutex
	chains map[string]*chain
	depth  map[string]int
}

// NewRegistry creates a Registry that owns exactly the given extension-point
// names. Declaring the full set up front lets RegisterWrite/RegisterRead/Call
// reject typos immediately instead of silently registering to a point
// nobody calls.
func NewRegistry(names ...string) *Registry {
	r := &Registry{
		chains: make(map[string]*chain, len(names)),
		depth:  make(map[string]int, len(names)),
	}
	for _, n := range names {
		r.chains[n] = &chain{}
	}
	return r
}

// RegisterWrite adds fn to the write-chain of name, run in registration
// order during Call, each threading its return value into the next.
func (r *Registry) RegisterWrite(name string, fn domain.WriteFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chains[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownExtensionPoint, name)
	}
	c.writes = append(c.writes, domain.Callback{Name: name, Kind: domain.Write, Write: fn})
	return nil
}

// RegisterRead adds fn to the read-chain of name, invoked after all writes
// have settled, for observation only.
func (r *Registry) RegisterRead(name string, fn domain.ReadFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chains[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownExtensionPoint, name)
	}
	c.reads = append(c.reads, domain.Callback{Name: name, Kind: domain.Read, Read: fn})
	return nil
}

// Call runs every write callback in registration order, threading value
// through each, then every read callback with the final value. An error
// from any callback aborts the remaining chain and propagates to the
// caller. Re-entrant calls into the same name from within its own chain are
// permitted up to domain.MaxReentrantDepth before Call fails fast with
// domain.ErrReentrant.
func (r *Registry) Call(ctx context.Context, name string, value any) (any, error) {
	r.mu.Lock()
	c, ok := r.chains[name]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownExtensionPoint, name)
	}
	r.depth[name]++
	depth := r.depth[name]
	writes := append([]domain.Callback(nil), c.writes...)
	reads := append([]domain.Callback(nil), c.reads...)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.depth[name]--
		r.mu.Unlock()
	}()

	if depth > domain.MaxReentrantDepth {
		return nil, fmt.Errorf("%w: %s", domain.ErrReentrant, name)
	}

	cur := value
	for _, cb := range writes {
		next, err := cb.Write(ctx, cur)
		if err != nil {
			return nil, fmt.Errorf("hook %s: write callback failed: %w", name, err)
		}
		cur = next
	}
	for _, cb := range reads {
		if err := cb.Read(ctx, cur); err != nil {
			return nil, fmt.Errorf("hook %s: read callback failed: %w", name, err)
		}
	}
	return cur, nil
}

// Names returns the declared extension-point names, primarily for
// diagnostics and tests.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.chains))
	for n := range r.chains {
		names = append(names, n)
	}
	return names
}
