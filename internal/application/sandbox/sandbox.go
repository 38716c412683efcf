// Package sandbox implements the domain/sandbox.Sandbox port. Go offers no
// runtime evaluator for arbitrary compiled source the way a scripting host
// would, so a compiled test module is represented here as a Loader function
// registered ahead of time under its absolute path through RegisterLoader
// (the infrastructure compiler adapter does not register loaders). Evaluate
// then becomes lookup-and-invoke instead of parse-and-run,
// while still honoring the ModuleGraph's require wiring and its cycle
// semantics.
package sandbox

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	domain "github.com/danbao/testring-sub000/internal/domain/sandbox"
)

// RequireFunc resolves one require specifier to the required module's
// export table.
type RequireFunc func(spec string) (*Exports, error)

// Loader is the registered entry point for one compiled module. It
// populates exports using require to pull in its own dependencies.
type Loader func(ctx context.Context, sctx domain.Context, require RequireFunc, exports *Exports) error

// Sandbox evaluates modules by looking up a Loader registered per absolute
// path and memoizing completed evaluations by path. A path still being
// evaluated is not run again: a second Evaluate for it, from a require
// cycle or from another goroutine, returns the partially populated table.
type Sandbox struct {
	mu         sync.Mutex
	loaders    map[string]Loader
	cache      map[string]*Exports
	inProgress map[string]*Exports
	group      singleflight.Group
}

// New creates an empty Sandbox.
func New() *Sandbox {
	return &Sandbox{
		loaders:    make(map[string]Loader),
		cache:      make(map[string]*Exports),
		inProgress: make(map[string]*Exports),
	}
}

// RegisterLoader binds path to fn. Called once per compiled module, before
// any Evaluate call can reach it via a require.
func (s *Sandbox) RegisterLoader(path string, fn Loader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaders[path] = fn
}

// Evaluate runs the module registered under sctx.Filename. source is
// accepted to satisfy domain.Sandbox but is not reparsed: the registered
// Loader is authoritative. graph supplies the require resolution table for
// this module and everything it transitively requires.
func (s *Sandbox) Evaluate(ctx context.Context, source []byte, sctx domain.Context, graph domain.ModuleGraph) (any, error) {
	exports, err := s.evaluatePath(ctx, sctx, graph)
	if err != nil {
		return nil, err
	}
	return exports, nil
}

func (s *Sandbox) evaluatePath(ctx context.Context, sctx domain.Context, graph domain.ModuleGraph) (*Exports, error) {
	path := sctx.Filename

	s.mu.Lock()
	if cached, ok := s.cache[path]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	if inflight, ok := s.inProgress[path]; ok {
		// A require cycle re-entered this module: return the
		// partially-populated table rather than re-running the loader.
		s.mu.Unlock()
		return inflight, nil
	}
	loader, ok := s.loaders[path]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrModuleNotFound, path)
	}
	exports := NewExports()
	s.inProgress[path] = exports
	s.mu.Unlock()

	_, err, _ := s.group.Do(path, func() (any, error) {
		require := func(spec string) (*Exports, error) {
			entry, ok := graph[path][spec]
			if !ok {
				return nil, fmt.Errorf("%w: %s required from %s", domain.ErrModuleNotFound, spec, path)
			}
			childCtx := domain.Context{
				Dirname:  dirOf(entry.Path),
				Filename: entry.Path,
				Globals:  sctx.Globals,
			}
			return s.evaluatePath(ctx, childCtx, graph)
		}
		return nil, loader(ctx, sctx, require, exports)
	})

	s.mu.Lock()
	delete(s.inProgress, path)
	if err == nil {
		s.cache[path] = exports
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return exports, nil
}

// ClearCache drops every cached evaluation. Registered loaders are kept:
// they represent compiled code, not evaluation state.
func (s *Sandbox) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*Exports)
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}

var _ domain.Sandbox = (*Sandbox)(nil)
