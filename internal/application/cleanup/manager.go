// Package cleanup implements the process-wide cleanup manager: the
// singleton spec.md §4.I describes as existing because real browser
// drivers can orphan native processes. It keeps a persisted registry of
// spawned native PIDs, reaps the ones whose parent is gone, and refuses to
// touch anything still live and parented. Grounded on the retrieved
// daemon's unix zombie reaper (periodic sweep + explicit Stop lifecycle)
// and its boltdb store's atomic-rewrite discipline, adapted from "reap any
// zombie" to "reap only orphaned, registry-known PIDs" per spec.md's
// explicit friendly-fire guard.
package cleanup

import (
	"os"
	"sync"
	"time"
)

// PIDChecker abstracts the OS-specific "is pid alive and parented by
// someone other than us" check so Manager stays portable; infrastructure
// supplies the concrete implementation.
type PIDChecker interface {
	// Alive reports whether pid currently exists.
	Alive(pid int) bool
	// ParentPID returns pid's parent process id, or 0 if it cannot be
	// determined (treated as "orphaned" only when Alive is also true).
	ParentPID(pid int) int
}

// Store is the persistence port Manager writes its registry through;
// infrastructure/persistence/registry.Store satisfies it.
type Store interface {
	Read() (Document, error)
	Write(Document) error
	Remove() error
}

// Document mirrors registry.Document without importing the infrastructure
// package from application code.
type Document struct {
	PIDs      []int
	WriterPID int
	WrittenAt int64
}

// DefaultSweepInterval is how often Manager checks the registry for stale
// entries while running.
const DefaultSweepInterval = 30 * time.Second

// DefaultTTL is the ttl New falls back to when given ttl <= 0. SweepOnce
// does not consult the ttl or the age of a registry entry: it decides by
// liveness and parentage only.
const DefaultTTL = 10 * time.Minute

// Manager is the cleanup singleton. Bootstrap constructs one Manager per
// run and stops it at shutdown; neither the Browser-proxy controller nor
// the child-process supervisor holds it, so PIDs enter the registry only
// through explicit Register calls.
type Manager struct {
	store   Store
	checker PIDChecker
	ttl     time.Duration

	mu  sync.Mutex
	own int

	stop chan struct{}
	done chan struct{}
}

// New creates a Manager persisting through store and checking liveness
// through checker. ttl <= 0 falls back to DefaultTTL.
func New(store Store, checker PIDChecker, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, checker: checker, ttl: ttl, own: os.Getpid()}
}

// Register adds pid, a native process the caller wants reaped if
// orphaned, to the persisted registry. Idempotent.
func (m *Manager) Register(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.store.Read()
	if err != nil {
		return err
	}
	for _, p := range doc.PIDs {
		if p == pid {
			return nil
		}
	}
	doc.PIDs = append(doc.PIDs, pid)
	return m.store.Write(Document(doc))
}

// Unregister removes pid from the registry, typically once its owning
// session ended cleanly and there is nothing left to reap.
func (m *Manager) Unregister(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.store.Read()
	if err != nil {
		return err
	}
	kept := doc.PIDs[:0]
	for _, p := range doc.PIDs {
		if p != pid {
			kept = append(kept, p)
		}
	}
	doc.PIDs = kept
	return m.store.Write(Document(doc))
}

// SweepOnce runs one reap pass: for every registered PID that is alive but
// whose parent the checker reports as 0 (unknown, treated as orphaned),
// kill it and drop it from the registry. A PID that is not alive at all is
// simply dropped — there is nothing to kill. A PID that is alive AND has a
// nonzero parent PID is left
// untouched: spec.md §4.I's explicit guard against friendly-fire during
// test suites, since a live, parented process is presumably still wanted
// by whatever spawned it.
func (m *Manager) SweepOnce(kill func(pid int) error) (reaped []int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.store.Read()
	if err != nil {
		return nil, err
	}

	kept := doc.PIDs[:0]
	for _, pid := range doc.PIDs {
		if !m.checker.Alive(pid) {
			continue // already gone, nothing to reap or keep.
		}
		if m.checker.ParentPID(pid) != 0 {
			kept = append(kept, pid) // still alive and parented: leave it.
			continue
		}
		if err := kill(pid); err != nil {
			kept = append(kept, pid) // failed to kill: keep trying next sweep.
			continue
		}
		reaped = append(reaped, pid)
	}
	doc.PIDs = kept
	if err := m.store.Write(Document(doc)); err != nil {
		return reaped, err
	}
	return reaped, nil
}

// Start begins the periodic sweep loop in the background. kill is the
// actual OS-level termination the caller wires in (infrastructure owns
// syscall.Kill); Start itself stays OS-agnostic.
func (m *Manager) Start(interval time.Duration, kill func(pid int) error) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				_, _ = m.SweepOnce(kill)
			}
		}
	}()
}

// Stop halts the sweep loop, performs one last sweep, and removes the
// registry file — the manager's process is going away, so there is nothing
// left to read it.
func (m *Manager) Stop(kill func(pid int) error) {
	if m.stop != nil {
		close(m.stop)
		<-m.done
	}
	_, _ = m.SweepOnce(kill)
	_ = m.store.Remove()
}
