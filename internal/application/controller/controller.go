// Package controller implements the test-run-controller: the queue, the
// worker pool, and the retry/bail policy spec.md §4.H describes. Grounded
// on the retrieved daemon's application/supervisor.Supervisor — its
// wg-based fan-out over a fixed set of managed units and its
// stop-everything-then-wait shutdown sequence — generalized here from "N
// long-lived services" to "a queue of short-lived test dispatches against
// a bounded worker pool", with retry/requeue and bail added per spec.md.
package controller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	apphook "github.com/danbao/testring-sub000/internal/application/hook"
	domainclock "github.com/danbao/testring-sub000/internal/domain/clock"
	domainlogging "github.com/danbao/testring-sub000/internal/domain/logging"
	domainrun "github.com/danbao/testring-sub000/internal/domain/run"
	domainworker "github.com/danbao/testring-sub000/internal/domain/worker"
)

// Hook extension-point names the controller publishes, in the order
// spec.md §4.H fires them for a single test's lifecycle.
const (
	HookBeforeRun        = "beforeRun"
	HookShouldNotExecute = "shouldNotExecute"
	HookShouldNotStart   = "shouldNotStart"
	HookBeforeTest       = "beforeTest"
	HookAfterTest        = "afterTest"
	HookShouldNotRetry   = "shouldNotRetry"
	HookBeforeTestRetry  = "beforeTestRetry"
	HookAfterRun         = "afterRun"
)

// NewHookRegistry builds a hook.Registry declaring every extension point
// the controller publishes.
func NewHookRegistry() *apphook.Registry {
	return apphook.NewRegistry(
		HookBeforeRun, HookShouldNotExecute, HookShouldNotStart,
		HookBeforeTest, HookAfterTest,
		HookShouldNotRetry, HookBeforeTestRetry, HookAfterRun,
	)
}

// WorkerFactory produces a fresh domain/worker.Instance for a pool slot to
// dispatch against — either application/worker.NewChild (over a spawned
// process) or application/worker.NewLocal (in-process), depending on how
// bootstrap wired the run. The controller calls it lazily, once per slot
// and again whenever a slot's current instance dies or is retired.
type WorkerFactory func(ctx context.Context) (domainworker.Instance, error)

// Controller owns the queue and the worker pool for one run.
type Controller struct {
	cfg     domainrun.Config
	hooks   *apphook.Registry
	clock   domainclock.Clock
	factory WorkerFactory
	logger  domainlogging.Logger
}

// New creates a Controller. logger may be nil, in which case
// domainlogging.Nop is used.
func New(cfg domainrun.Config, hooks *apphook.Registry, clock domainclock.Clock, factory WorkerFactory, logger domainlogging.Logger) *Controller {
	if logger == nil {
		logger = domainlogging.Nop{}
	}
	return &Controller{cfg: cfg, hooks: hooks, clock: clock, factory: factory, logger: logger}
}

// RunQueue dispatches every entry to the worker pool, applying retry and
// bail policy, and returns the accumulated failures (spec.md §4.H, §6). A
// nil or empty result means total success.
//
// WorkerLimit's spec.md type is "int | local"; this Go model resolves it
// as: 0 means no capacity at all (§8's boundary test — runQueue returns
// immediately with no dispatch), a positive value is the concurrency cap,
// and a negative value is the "local" sentinel (a single in-process
// worker, matching domain/run.PoolConfig's doc comment). This choice is
// recorded in DESIGN.md.
func (c *Controller) RunQueue(ctx context.Context, entries []domainworker.TestEntry) ([]domainrun.Error, error) {
	entries = c.fireBeforeRun(ctx, entries)

	if c.fireBoolHook(ctx, HookShouldNotExecute, entries) {
		c.fireAfterRun(ctx, nil)
		return nil, nil
	}

	poolSize := c.resolvePoolSize()
	if poolSize == 0 || len(entries) == 0 {
		c.fireAfterRun(ctx, nil)
		return nil, nil
	}

	bailCtx, bailCancel := context.WithCancel(ctx)
	defer bailCancel()

	q := newEntryQueue(entries)

	var (
		mu     sync.Mutex
		errs   []domainrun.Error
		bailed atomic.Bool
	)
	addErr := func(e domainrun.Error) {
		mu.Lock()
		errs = append(errs, e)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < poolSize; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.runSlot(ctx, bailCtx, bailCancel, q, &bailed, addErr)
		}()
	}
	wg.Wait()

	c.fireAfterRun(ctx, errs)
	if len(errs) == 0 {
		return nil, nil
	}
	return errs, nil
}

func (c *Controller) resolvePoolSize() int {
	wl := c.cfg.Pool.WorkerLimit
	switch {
	case wl == 0:
		return 0
	case wl < 0:
		return 1
	default:
		return wl
	}
}

// runSlot is one worker-pool slot's lifetime: pop an entry, lazily spawn or
// reuse an Instance, dispatch, apply the retry/bail decision, repeat until
// the queue drains or a bail cancels the run.
func (c *Controller) runSlot(ctx, bailCtx context.Context, bailCancel context.CancelFunc, q *entryQueue, bailed *atomic.Bool, addErr func(domainrun.Error)) {
	var inst domainworker.Instance
	defer func() {
		if inst != nil {
			killCtx, cancel := context.WithTimeout(context.Background(), c.killGrace())
			_ = inst.Kill(killCtx)
			cancel()
		}
	}()

	for {
		entry, ok := q.pop(ctx, bailCtx)
		if !ok {
			return
		}

		if c.fireBoolHook(ctx, HookShouldNotStart, entry) {
			q.resolve()
			continue
		}

		if inst == nil {
			spawned, err := c.factory(ctx)
			if err != nil {
				c.logger.Error("controller: spawn worker failed", domainlogging.F("error", err))
				addErr(domainrun.Error{TestPath: entry.File.Path, RetriesUsed: entry.RetriesUsed, Kind: domainrun.ErrorKindTransport, Message: err.Error()})
				q.resolve()
				continue
			}
			inst = spawned
		}

		c.fireBeforeTest(ctx, entry)

		outcome, execErr := inst.Execute(bailCtx, entry, c.cfg.Timeout.TestTimeoutMillis)
		if execErr != nil {
			outcome = domainworker.Outcome{Success: false, Error: &domainworker.ExecutionError{Kind: domainworker.KindPeerLost, Message: execErr.Error()}}
			inst = nil // the instance is presumed dead; respawn next iteration.
		} else if c.cfg.Pool.RestartWorker {
			killCtx, cancel := context.WithTimeout(context.Background(), c.killGrace())
			_ = inst.Kill(killCtx)
			cancel()
			inst = nil
		}

		c.fireAfterTest(ctx, entry, outcome)

		if outcome.Success {
			q.resolve()
			continue
		}

		if bailed.Load() {
			// This entry was in flight when another slot's failure
			// triggered bail; its cancellation is attributed to the bail,
			// not to whatever error (if any) it was about to report.
			addErr(domainrun.Error{TestPath: entry.File.Path, RetriesUsed: entry.RetriesUsed, Kind: domainrun.ErrorKindBailCancel, Message: "cancelled by bail"})
			q.resolve()
			return
		}

		c.dispatchFailure(ctx, entry, outcome, q, bailed, bailCancel, addErr)
	}
}

// dispatchFailure applies the retry/bail decision for one failed outcome.
func (c *Controller) dispatchFailure(ctx context.Context, entry domainworker.TestEntry, outcome domainworker.Outcome, q *entryQueue, bailed *atomic.Bool, bailCancel context.CancelFunc, addErr func(domainrun.Error)) {
	kind := domainrun.ErrorKind(outcome.Error.Kind)

	// CompileError is never retried by default (spec.md §7).
	retryEligible := kind != domainrun.ErrorKindCompile &&
		entry.RetriesUsed < c.cfg.Retry.RetryCount &&
		!c.fireShouldNotRetry(ctx, entry, outcome.Error)

	if retryEligible {
		c.fireBeforeTestRetry(ctx, entry, outcome.Error, entry.RetriesUsed)
		retryEntry := entry
		retryEntry.RetriesUsed++
		go func() {
			_ = c.clock.Sleep(ctx, time.Duration(c.cfg.Retry.RetryDelayMillis)*time.Millisecond)
			q.push(retryEntry)
		}()
		return
	}

	addErr(domainrun.Error{
		TestPath:    entry.File.Path,
		RetriesUsed: entry.RetriesUsed,
		Kind:        kind,
		Message:     outcome.Error.Message,
		Payload:     outcome.Error.Stack,
	})
	q.resolve()

	if c.cfg.Retry.Bail && bailed.CompareAndSwap(false, true) {
		bailCancel()
	}
}

func (c *Controller) killGrace() time.Duration {
	if c.cfg.Timeout.ContextCloseMillis <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.cfg.Timeout.ContextCloseMillis) * time.Millisecond
}

func (c *Controller) fireBeforeRun(ctx context.Context, entries []domainworker.TestEntry) []domainworker.TestEntry {
	if c.hooks == nil {
		return entries
	}
	v, err := c.hooks.Call(ctx, HookBeforeRun, entries)
	if err != nil {
		return entries
	}
	if transformed, ok := v.([]domainworker.TestEntry); ok {
		return transformed
	}
	return entries
}

func (c *Controller) fireBeforeTest(ctx context.Context, entry domainworker.TestEntry) {
	if c.hooks == nil {
		return
	}
	_, _ = c.hooks.Call(ctx, HookBeforeTest, entry)
}

func (c *Controller) fireAfterTest(ctx context.Context, entry domainworker.TestEntry, outcome domainworker.Outcome) {
	if c.hooks == nil {
		return
	}
	_, _ = c.hooks.Call(ctx, HookAfterTest, afterTestValue{Entry: entry, Outcome: outcome})
}

func (c *Controller) fireBeforeTestRetry(ctx context.Context, entry domainworker.TestEntry, execErr *domainworker.ExecutionError, retriesUsed int) {
	if c.hooks == nil {
		return
	}
	_, _ = c.hooks.Call(ctx, HookBeforeTestRetry, beforeRetryValue{Entry: entry, Error: execErr, RetriesUsed: retriesUsed})
}

func (c *Controller) fireAfterRun(ctx context.Context, errs []domainrun.Error) {
	if c.hooks == nil {
		return
	}
	_, _ = c.hooks.Call(ctx, HookAfterRun, errs)
}

func (c *Controller) fireShouldNotRetry(ctx context.Context, entry domainworker.TestEntry, execErr *domainworker.ExecutionError) bool {
	return c.fireBoolHook(ctx, HookShouldNotRetry, shouldNotRetryValue{Entry: entry, Error: execErr})
}

// fireBoolHook calls name's write chain with value and interprets its final
// result as a decision: true only if some registered callback explicitly
// returned true. No registered callbacks (the common case with no plugins
// installed) always yields false.
func (c *Controller) fireBoolHook(ctx context.Context, name string, value any) bool {
	if c.hooks == nil {
		return false
	}
	v, err := c.hooks.Call(ctx, name, value)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

type afterTestValue struct {
	Entry   domainworker.TestEntry
	Outcome domainworker.Outcome
}

type beforeRetryValue struct {
	Entry       domainworker.TestEntry
	Error       *domainworker.ExecutionError
	RetriesUsed int
}

type shouldNotRetryValue struct {
	Entry domainworker.TestEntry
	Error *domainworker.ExecutionError
}
