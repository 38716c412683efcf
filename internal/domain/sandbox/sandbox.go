// Package sandbox declares the isolated-evaluation port a compiled test
// module runs inside: a per-module context exposing a synthetic require,
// resolved against a precomputed ModuleGraph rather than a real filesystem
// walk at execution time.
package sandbox

import (
	"context"
	"errors"
)

// ErrModuleNotFound is returned by Require when spec is absent from the
// ModuleGraph and unresolvable by the host loader.
var ErrModuleNotFound = errors.New("sandbox: module not found")

// Module is one resolved entry in a ModuleGraph: the file's own absolute
// path and its compiled bytes.
type Module struct {
	Path  string
	Bytes []byte
}

// ModuleGraph maps an absolute path to the set of require specifiers it
// resolves, each pointing at another Module. Every Path that appears as a
// resolved value also appears as a key (the invariant leaf nodes is an
// empty entry), and platform/third-party modules are excluded entirely:
// the host loader resolves those directly.
type ModuleGraph map[string]map[string]Module

// Context is what a running module sees: its own identity plus the
// caller-supplied globals table.
type Context struct {
	Dirname  string
	Filename string
	Globals  map[string]any
}

// Sandbox evaluates one compiled module's bytes in isolation and returns
// its exports object. Implementations must be safe to reuse across
// sequential Evaluate calls but are not required to be safe for concurrent
// ones — the worker that owns a Sandbox evaluates single-threaded.
type Sandbox interface {
	// Evaluate runs source as module Filename (from ctx), resolving
	// require(spec) calls against graph. A module currently mid-evaluation
	// that is required again (a cycle) must return its partially
	// initialized exports rather than re-entering.
	Evaluate(ctx context.Context, source []byte, sctx Context, graph ModuleGraph) (exports any, err error)

	// ClearCache drops every cached, already-executed module.
	ClearCache()
}
