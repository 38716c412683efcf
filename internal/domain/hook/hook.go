// Package hook provides the domain types for named extension points with
// ordered read/write callback chains (spec.md §4.A).
package hook

import (
	"context"
	"errors"
)

// Kind distinguishes a callback that may transform the in-flight value
// (Write) from one that only observes it (Read).
type Kind int

const (
	Write Kind = iota
	Read
)

// WriteFunc receives the current value and context and returns a possibly
// new value. Returning an error aborts the chain.
type WriteFunc func(ctx context.Context, value any) (any, error)

// ReadFunc observes the final value; its return value is ignored by the
// chain, only the error (if any) propagates.
type ReadFunc func(ctx context.Context, value any) error

// Callback is one named entry in a chain.
type Callback struct {
	Name  string
	Kind  Kind
	Write WriteFunc
	Read  ReadFunc
}

// ErrUnknownExtensionPoint is returned when a name not declared at
// construction is registered against or called.
var ErrUnknownExtensionPoint = errors.New("hook: unknown extension point")

// ErrReentrant is returned when a chain detects unbounded re-entrancy into
// itself from one of its own callbacks.
var ErrReentrant = errors.New("hook: re-entrant call exceeded depth limit")

// MaxReentrantDepth bounds how many times call() may recurse into the same
// extension point from within its own callback chain before it is treated
// as a cycle. Re-entrancy itself is permitted (spec.md §4.A); only unbounded
// recursion is rejected.
const MaxReentrantDepth = 8
