// Package childproc orchestrates the worker and browser-proxy processes the
// controller spawns: starting them, wiring their stdio into Transport, and
// watching for exit, the way the retrieved daemon's application/supervisor
// package tracks its own set of managed services and fans their events out
// through a per-service monitoring goroutine.
package childproc

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	domain "github.com/danbao/testring-sub000/internal/domain/process"
)

// DefaultStopTimeout is how long Kill waits for a SIGTERM to take effect
// before escalating to SIGKILL.
const DefaultStopTimeout = 5 * time.Second

// child tracks one spawned process's bookkeeping.
type child struct {
	pid   int
	state domain.State
}

// Supervisor spawns and tracks child processes by an application-assigned
// id (a worker id or browser-proxy session id), independent of PID.
type Supervisor struct {
	executor domain.Executor

	mu       sync.RWMutex
	children map[string]*child

	events chan domain.Event
}

// New creates a Supervisor backed by executor. The event channel is
// buffered (64 events); once the buffer is full, Spawn and the watching
// goroutine block on their send until the caller drains it.
func New(executor domain.Executor) *Supervisor {
	return &Supervisor{
		executor: executor,
		children: make(map[string]*child),
		events:   make(chan domain.Event, 64),
	}
}

// Events returns the channel of lifecycle events for every spawned child.
func (s *Supervisor) Events() <-chan domain.Event { return s.events }

// Spawn starts spec under id and returns the writable stdin and readable
// stdout streams for the caller to hand to a Transport ChildLink.
func (s *Supervisor) Spawn(ctx context.Context, id string, spec domain.Spec) (stdin io.WriteCloser, stdout io.ReadCloser, err error) {
	s.mu.Lock()
	if _, exists := s.children[id]; exists {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("childproc %s: %w", id, domain.ErrAlreadyRunning)
	}
	s.children[id] = &child{state: domain.StateStarting}
	s.mu.Unlock()

	pid, in, out, wait, err := s.executor.Start(ctx, spec)
	if err != nil {
		s.mu.Lock()
		delete(s.children, id)
		s.mu.Unlock()
		return nil, nil, err
	}

	s.mu.Lock()
	s.children[id].pid = pid
	s.children[id].state = domain.StateRunning
	s.mu.Unlock()

	s.events <- domain.NewEvent(domain.EventStarted, id, pid, 0, nil)

	go s.watch(id, pid, wait)

	return in, out, nil
}

// watch blocks until the spawned process exits and emits the matching
// event, distinguishing a requested Stop (EventExited) from an
// unrequested crash (EventCrashed).
func (s *Supervisor) watch(id string, pid int, wait <-chan domain.ExitResult) {
	result := <-wait

	s.mu.Lock()
	c, ok := s.children[id]
	var requested bool
	if ok {
		requested = c.state == domain.StateStopping
		c.state = domain.StateStopped
		if !requested && (result.Code != 0 || result.Error != nil) {
			c.state = domain.StateFailed
		}
	}
	delete(s.children, id)
	s.mu.Unlock()

	typ := domain.EventExited
	if !requested && (result.Code != 0 || result.Error != nil) {
		typ = domain.EventCrashed
	}
	s.events <- domain.NewEvent(typ, id, pid, result.Code, result.Error)
}

// Kill sends SIGTERM to id's process, escalating to SIGKILL after
// DefaultStopTimeout, and marks the child as stopping so watch reports a
// requested exit rather than a crash.
func (s *Supervisor) Kill(id string) error {
	s.mu.Lock()
	c, ok := s.children[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("childproc %s: %w", id, domain.ErrNotRunning)
	}
	c.state = domain.StateStopping
	pid := c.pid
	s.mu.Unlock()

	return s.executor.Stop(pid, DefaultStopTimeout)
}

// PID returns the OS process id for a tracked child, or 0 if unknown.
func (s *Supervisor) PID(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.children[id]; ok {
		return c.pid
	}
	return 0
}

// Running reports whether id is currently tracked as starting or running.
func (s *Supervisor) Running(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.children[id]
	return ok && !c.state.IsTerminal()
}
