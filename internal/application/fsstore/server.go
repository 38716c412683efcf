// Package fsstore implements the FS-Store server: cluster-wide arbitration
// of file slot access so concurrent workers never collide on the same
// generated artifact path. Each unique fullPath gets its own trio of FIFO
// queues (github.com/eapache/queue), matching spec.md's "one queue per
// action per path" server algorithm; a single semaphore caps how many
// acquisitions may be outstanding across the whole store at once.
package fsstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/google/uuid"

	apphook "github.com/danbao/testring-sub000/internal/application/hook"
	domain "github.com/danbao/testring-sub000/internal/domain/fsstore"
)

// Hook extension-point names the server publishes.
const (
	HookOnQueue    = "ON_QUEUE"
	HookOnFilename = "ON_FILENAME"
	HookOnRelease  = "ON_RELEASE"
)

// DefaultThreadCount is the default ceiling on simultaneously outstanding
// acquisitions across every path, per spec.md §6's FS-Store configuration.
const DefaultThreadCount = 10

type waiter struct {
	req    domain.Request
	result chan acquireResult
}

type acquireResult struct {
	fullPath string
	token    string
	err      error
}

type pathState struct {
	lockQueue   *queue.Queue
	accessQueue *queue.Queue
	unlinkQueue *queue.Queue

	lockHeld    bool
	accessCount int
	unlinked    bool

	lockFreeCh chan struct{}
}

func newPathState() *pathState {
	return &pathState{
		lockQueue:   queue.New(),
		accessQueue: queue.New(),
		unlinkQueue: queue.New(),
		lockFreeCh:  closedChan(),
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type grant struct {
	fullPath string
	action   domain.Action
	workerID string
}

// Ledger is the optional durable diagnostic sink a Server records every
// grant/release through; infrastructure/persistence/boltdb.Ledger
// satisfies it. A Server with no Ledger set behaves identically — the
// ledger is a crash-recovery aid, never part of arbitration itself.
type Ledger interface {
	RecordGrant(rec LedgerGrant) error
	RecordRelease(token string) error
}

// LedgerGrant is the record handed to Ledger.RecordGrant, mirroring
// infrastructure/persistence/boltdb.GrantRecord without requiring
// application code to import that package.
type LedgerGrant struct {
	Token     string
	FullPath  string
	WorkerID  string
	Action    string
	GrantedAt int64
}

// Server is the application-level FS-Store server. One Server exists per
// run, shared by every worker's FS-Store client over Transport.
type Server struct {
	runID  string
	hooks  *apphook.Registry
	ledger Ledger
	now    func() int64

	sem chan struct{}

	mu       sync.Mutex
	ready    bool
	paths    map[string]*pathState
	tokens   map[string]grant
	byWorker map[string]map[string]struct{}
}

// New creates a Server for runID with the given acquisition concurrency
// ceiling. threadCount <= 0 falls back to DefaultThreadCount. The server
// starts not-ready; MarkReady must be called once its own startup (e.g.
// attaching a durable ledger) completes before it accepts Acquire calls.
func New(runID string, threadCount int, hooks *apphook.Registry) *Server {
	if threadCount <= 0 {
		threadCount = DefaultThreadCount
	}
	return &Server{
		runID:    runID,
		hooks:    hooks,
		now:      func() int64 { return time.Now().UnixNano() },
		sem:      make(chan struct{}, threadCount),
		paths:    make(map[string]*pathState),
		tokens:   make(map[string]grant),
		byWorker: make(map[string]map[string]struct{}),
	}
}

// SetLedger attaches a durable diagnostic ledger. Writes to it are
// best-effort: a failing ledger never blocks or fails an Acquire/Release.
func (s *Server) SetLedger(l Ledger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = l
}

// MarkReady flips the server into accepting Acquire calls. Before this is
// called, every Acquire fails fast with ErrServerNotReady (spec.md §4.F
// "Server-uninitialized requests fail with NotReady") instead of
// arbitrating against a store bootstrap may still be attaching state to.
func (s *Server) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
}

// Acquire arbitrates req and blocks until the server grants it, ctx is
// canceled, or the request is nonsensical (Unlink against an unrecognized
// path with no matching Meta is still accepted — Unlink can be requested
// before any Lock/Access ever touched the path, and simply completes
// immediately against a Free slot).
func (s *Server) Acquire(ctx context.Context, req domain.Request) (fullPathOut string, releaseToken string, err error) {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	if !ready {
		return "", "", fmt.Errorf("fsstore: acquire: %w", domain.ErrServerNotReady)
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return "", "", ctx.Err()
	}
	defer func() { <-s.sem }()

	path := fullPath(s.runID, req)
	if s.hooks != nil {
		if v, herr := s.hooks.Call(ctx, HookOnFilename, path); herr == nil {
			if transformed, ok := v.(string); ok && transformed != "" {
				path = transformed
			}
		}
	}

	s.mu.Lock()
	ps, ok := s.paths[path]
	if !ok {
		ps = newPathState()
		s.paths[path] = ps
	}

	if ps.unlinked {
		s.mu.Unlock()
		return "", "", fmt.Errorf("fsstore: acquire %s: %w", path, domain.ErrNoSuchFile)
	}

	if granted, token := s.tryGrantLocked(path, ps, req); granted {
		s.mu.Unlock()
		s.recordGrant(token, path, req)
		return path, token, nil
	}

	w := &waiter{req: req, result: make(chan acquireResult, 1)}
	s.enqueueLocked(ps, req.Action, w)
	s.mu.Unlock()

	if s.hooks != nil {
		_, _ = s.hooks.Call(ctx, HookOnQueue, req)
	}

	select {
	case res := <-w.result:
		if res.err == nil {
			s.recordGrant(res.token, res.fullPath, req)
		}
		return res.fullPath, res.token, res.err
	case <-ctx.Done():
		return "", "", ctx.Err()
	}
}

// recordGrant best-effort persists a grant to the diagnostic ledger, if
// one is attached. Failures are not propagated: the ledger is a
// crash-recovery aid, never part of arbitration.
func (s *Server) recordGrant(token, path string, req domain.Request) {
	s.mu.Lock()
	l := s.ledger
	s.mu.Unlock()
	if l == nil {
		return
	}
	_ = l.RecordGrant(LedgerGrant{
		Token:     token,
		FullPath:  path,
		WorkerID:  req.WorkerID,
		Action:    req.Action.String(),
		GrantedAt: s.now(),
	})
}

func (s *Server) enqueueLocked(ps *pathState, action domain.Action, w *waiter) {
	switch action {
	case domain.Lock:
		ps.lockQueue.Add(w)
	case domain.Access:
		ps.accessQueue.Add(w)
	case domain.Unlink:
		ps.unlinkQueue.Add(w)
	}
}

// tryGrantLocked grants req immediately if the path's state allows it.
// Caller holds s.mu.
func (s *Server) tryGrantLocked(path string, ps *pathState, req domain.Request) (bool, string) {
	switch req.Action {
	case domain.Lock:
		if ps.lockHeld || ps.accessCount > 0 || ps.unlinked {
			return false, ""
		}
		ps.lockHeld = true
		ps.lockFreeCh = make(chan struct{})
		return true, s.registerTokenLocked(path, domain.Lock, req.WorkerID)
	case domain.Access:
		if ps.lockHeld || ps.unlinked {
			return false, ""
		}
		ps.accessCount++
		return true, s.registerTokenLocked(path, domain.Access, req.WorkerID)
	case domain.Unlink:
		if ps.lockHeld || ps.accessCount > 0 {
			return false, ""
		}
		ps.unlinked = true
		return true, s.registerTokenLocked(path, domain.Unlink, req.WorkerID)
	default:
		return false, ""
	}
}

// registerTokenLocked mints a token for a newly granted action, recording
// it under workerID so ReleaseWorker can find every grant belonging to a
// worker that has disconnected. Caller holds s.mu.
func (s *Server) registerTokenLocked(path string, action domain.Action, workerID string) string {
	token := uuid.NewString()
	s.tokens[token] = grant{fullPath: path, action: action, workerID: workerID}
	if s.byWorker[workerID] == nil {
		s.byWorker[workerID] = make(map[string]struct{})
	}
	s.byWorker[workerID][token] = struct{}{}
	return token
}

// Release returns a previously granted slot. Idempotent: releasing an
// unknown or already-released token is a no-op.
func (s *Server) Release(ctx context.Context, token string) error {
	s.mu.Lock()
	g, ok := s.tokens[token]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.tokens, token)
	if set := s.byWorker[g.workerID]; set != nil {
		delete(set, token)
		if len(set) == 0 {
			delete(s.byWorker, g.workerID)
		}
	}

	ps, ok := s.paths[g.fullPath]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("fsstore: release %s: %w", g.fullPath, domain.ErrNoSuchFile)
	}

	switch g.action {
	case domain.Lock:
		ps.lockHeld = false
		old := ps.lockFreeCh
		ps.lockFreeCh = closedChan()
		close(old)
	case domain.Access:
		if ps.accessCount > 0 {
			ps.accessCount--
		}
	case domain.Unlink:
		// terminal; nothing to release, the slot stays retired.
	}

	s.advanceLocked(g.fullPath, ps)
	s.mu.Unlock()

	if s.ledger != nil {
		_ = s.ledger.RecordRelease(token)
	}
	if s.hooks != nil {
		_, _ = s.hooks.Call(ctx, HookOnRelease, g)
	}
	return nil
}

// ReleaseWorker releases every grant currently held by workerID, exactly as
// if the worker had called Release on each one itself. This is the
// "worker disconnection" release path of spec.md §4.F: when Transport
// observes a worker's peer.lost, the caller is expected to invoke this so
// a crashed worker's Lock does not deadlock every future request against
// that path for the rest of the run.
func (s *Server) ReleaseWorker(ctx context.Context, workerID string) {
	s.mu.Lock()
	tokens := make([]string, 0, len(s.byWorker[workerID]))
	for t := range s.byWorker[workerID] {
		tokens = append(tokens, t)
	}
	s.mu.Unlock()

	for _, t := range tokens {
		_ = s.Release(ctx, t)
	}
}

// advanceLocked grants as many queued waiters as the now-current state
// permits. Caller holds s.mu.
func (s *Server) advanceLocked(path string, ps *pathState) {
	if !ps.lockHeld && ps.accessCount == 0 && !ps.unlinked && ps.lockQueue.Length() > 0 {
		w := ps.lockQueue.Remove().(*waiter)
		ps.lockHeld = true
		ps.lockFreeCh = make(chan struct{})
		w.result <- acquireResult{fullPath: path, token: s.registerTokenLocked(path, domain.Lock, w.req.WorkerID)}
	}

	for !ps.lockHeld && !ps.unlinked && ps.accessQueue.Length() > 0 {
		w := ps.accessQueue.Remove().(*waiter)
		ps.accessCount++
		w.result <- acquireResult{fullPath: path, token: s.registerTokenLocked(path, domain.Access, w.req.WorkerID)}
	}

	if !ps.lockHeld && ps.accessCount == 0 && !ps.unlinked && ps.unlinkQueue.Length() > 0 {
		w := ps.unlinkQueue.Remove().(*waiter)
		ps.unlinked = true
		w.result <- acquireResult{fullPath: path, token: s.registerTokenLocked(path, domain.Unlink, w.req.WorkerID)}
	}
}

// WaitForUnlock blocks until fullPath has no outstanding Lock, or ctx is
// canceled. A never-seen path is treated as unlocked.
func (s *Server) WaitForUnlock(ctx context.Context, path string) error {
	for {
		s.mu.Lock()
		ps, ok := s.paths[path]
		if !ok || !ps.lockHeld {
			s.mu.Unlock()
			return nil
		}
		ch := ps.lockFreeCh
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
