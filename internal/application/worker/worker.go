// Package worker implements the domain/worker.Instance port: a child-process
// executor (Child) driven over Transport, and an in-controller-process
// executor (Local) with an identical contract for debugging, per spec.md
// §4.G. Both share the hook-firing and timeout/cancel shape grounded on the
// retrieved daemon's application/lifecycle.Manager start/execute/stop flow.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	apphook "github.com/danbao/testring-sub000/internal/application/hook"
	appsandbox "github.com/danbao/testring-sub000/internal/application/sandbox"
	domainclock "github.com/danbao/testring-sub000/internal/domain/clock"
	domaincompiler "github.com/danbao/testring-sub000/internal/domain/compiler"
	domainsandbox "github.com/danbao/testring-sub000/internal/domain/sandbox"
	domain "github.com/danbao/testring-sub000/internal/domain/worker"
)

// Hook extension-point names the worker publishes.
const (
	HookBeforeCompile = "beforeCompile"
	HookCompile       = "compile"
)

// NewHookRegistry builds a hook.Registry declaring every extension point a
// worker instance publishes.
func NewHookRegistry() *apphook.Registry {
	return apphook.NewRegistry(HookBeforeCompile, HookCompile)
}

// Local runs a TestEntry in the controller's own process, without a
// Transport hop, for debugging (spec.md §4.G "Local mode").
type Local struct {
	id       string
	compiler domaincompiler.Compiler
	sandbox  *appsandbox.Sandbox
	hooks    *apphook.Registry
	clock    domainclock.Clock

	mu    sync.Mutex
	state domain.State
}

// NewLocal creates a Local worker instance with id, using compiler to
// transform test source, sandbox to evaluate it, hooks for
// beforeCompile/compile, and clock for timeout enforcement.
func NewLocal(id string, compiler domaincompiler.Compiler, sandbox *appsandbox.Sandbox, hooks *apphook.Registry, clock domainclock.Clock) *Local {
	return &Local{id: id, compiler: compiler, sandbox: sandbox, hooks: hooks, clock: clock, state: domain.Idle}
}

// WorkerID returns the worker's stable id.
func (l *Local) WorkerID() string { return l.id }

// State returns the worker's current lifecycle state.
func (l *Local) State() domain.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Execute compiles and evaluates entry.File, applying timeoutMillis as a
// deadline on ctx. The default export convention (a single top-level
// function) is represented by looking up the "default" key in the
// evaluated Exports table and invoking it if present; a module with no
// "default" export is considered complete once Evaluate returns.
func (l *Local) Execute(ctx context.Context, entry domain.TestEntry, timeoutMillis int64) (domain.Outcome, error) {
	l.mu.Lock()
	if l.state == domain.Dead {
		l.mu.Unlock()
		return domain.Outcome{}, domain.ErrDead
	}
	if l.state == domain.Busy {
		l.mu.Unlock()
		return domain.Outcome{}, domain.ErrBusy
	}
	l.state = domain.Busy
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		if l.state != domain.Dead {
			l.state = domain.Idle
		}
		l.mu.Unlock()
	}()

	runCtx := ctx
	var cancel context.CancelFunc
	if timeoutMillis > 0 {
		runCtx, cancel = contextWithTimeoutMillis(ctx, timeoutMillis)
		defer cancel()
	} else if timeoutMillis == 0 {
		// spec.md §8: timeout = 0 means every test fails with Timeout.
		return domain.Outcome{Success: false, Error: &domain.ExecutionError{Kind: domain.KindTimeout, Message: "timeout is zero"}}, nil
	}

	source := entry.File.Content
	if l.hooks != nil {
		if v, err := l.hooks.Call(runCtx, HookBeforeCompile, source); err == nil {
			if b, ok := v.([]byte); ok {
				source = b
			}
		}
	}

	compiled, err := l.compiler.Compile(runCtx, source, entry.File.Path)
	if err != nil {
		return domain.Outcome{Success: false, Error: &domain.ExecutionError{Kind: domain.KindCompile, Message: err.Error()}}, nil
	}

	if l.hooks != nil {
		if v, err := l.hooks.Call(runCtx, HookCompile, compiled); err == nil {
			if b, ok := v.([]byte); ok {
				compiled = b
			}
		}
	}

	graph := entry.File.Dependencies
	sctx := domainsandbox.Context{
		Filename: entry.File.Path,
		Globals:  entry.EnvParameters,
	}

	done := make(chan domain.Outcome, 1)
	go func() {
		exports, err := l.sandbox.Evaluate(runCtx, compiled, sctx, graph)
		if err != nil {
			done <- domain.Outcome{Success: false, Error: &domain.ExecutionError{Kind: domain.KindSandbox, Message: err.Error()}}
			return
		}
		if exp, ok := exports.(*appsandbox.Exports); ok {
			if err := invokeDefault(runCtx, exp); err != nil {
				done <- domain.Outcome{Success: false, Error: &domain.ExecutionError{Kind: domain.KindSandbox, Message: err.Error()}}
				return
			}
		}
		done <- domain.Outcome{Success: true}
	}()

	select {
	case outcome := <-done:
		return outcome, nil
	case <-runCtx.Done():
		return domain.Outcome{Success: false, Error: &domain.ExecutionError{Kind: domain.KindTimeout, Message: "execution exceeded configured timeout"}}, nil
	}
}

// invokeDefault calls the module's "default" export if it is a function
// shaped func(context.Context) error, the convention a compiled test
// module's top-level body is expected to follow once lowered to Go.
func invokeDefault(ctx context.Context, exports *appsandbox.Exports) error {
	v, ok := exports.Get("default")
	if !ok {
		return nil
	}
	fn, ok := v.(func(context.Context) error)
	if !ok {
		return nil
	}
	return fn(ctx)
}

// Kill marks the Local instance dead. There is no OS process to signal; the
// next Execute call will observe domain.ErrDead.
func (l *Local) Kill(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = domain.Dead
	return nil
}

var (
	_ domain.Instance = (*Local)(nil)

	instanceCounter uint64
)

// NextWorkerID returns prefix followed by a process-wide, monotonically
// increasing counter (worker ids are short-lived and only need per-run
// uniqueness). Nothing in this module calls it.
func NextWorkerID(prefix string) string {
	n := atomic.AddUint64(&instanceCounter, 1)
	return fmt.Sprintf("%s-%d", prefix, n)
}
