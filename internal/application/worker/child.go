package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	domaintransport "github.com/danbao/testring-sub000/internal/domain/transport"
	domain "github.com/danbao/testring-sub000/internal/domain/worker"
)

// Transport well-known envelope types for the worker execution protocol
// (spec.md §6: "test.*" prefix).
const (
	TypeExecute = "test.execute"
	TypeCancel  = "test.cancel"
	TypeReady   = "test.ready"
)

// executePayload is the wire shape of a "test.execute" message.
type executePayload struct {
	Entry         domain.TestEntry `json:"entry"`
	TimeoutMillis int64            `json:"timeoutMillis"`
}

// resultPayload is the wire shape of the worker's reply.
type resultPayload struct {
	Outcome domain.Outcome `json:"outcome"`
}

// Child drives a spawned worker process over Transport: spawn already
// happened (application/childproc.Supervisor) and the process's stdio is
// already registered as a ChildLink on the Bus before a Child is
// constructed; this type only owns the request/reply protocol on top of
// that link.
type Child struct {
	id  string
	bus ChildBus

	mu    sync.Mutex
	state domain.State
}

// ChildBus is the Bus surface Child depends on; *application/transport.Bus
// satisfies it directly.
type ChildBus interface {
	Send(ctx context.Context, destID, typ string, payload []byte) (domaintransport.Envelope, error)
}

// NewChild creates a Child instance for a worker process already reachable
// as destID on bus.
func NewChild(id string, bus ChildBus) *Child {
	return &Child{id: id, bus: bus, state: domain.Idle}
}

// WorkerID returns the worker's stable id.
func (c *Child) WorkerID() string { return c.id }

// State returns the worker's current lifecycle state.
func (c *Child) State() domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Execute sends entry to the child process and blocks for its result,
// honoring timeoutMillis. On expiry it treats the execution as a Timeout
// failure; the caller (the controller's pool) is responsible for killing a
// worker that does not come back after a cancel, per spec.md §5.
func (c *Child) Execute(ctx context.Context, entry domain.TestEntry, timeoutMillis int64) (domain.Outcome, error) {
	c.mu.Lock()
	if c.state == domain.Dead {
		c.mu.Unlock()
		return domain.Outcome{}, domain.ErrDead
	}
	if c.state == domain.Busy {
		c.mu.Unlock()
		return domain.Outcome{}, domain.ErrBusy
	}
	c.state = domain.Busy
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.state != domain.Dead {
			c.state = domain.Idle
		}
		c.mu.Unlock()
	}()

	if timeoutMillis == 0 {
		return domain.Outcome{Success: false, Error: &domain.ExecutionError{Kind: domain.KindTimeout, Message: "timeout is zero"}}, nil
	}

	payload, err := json.Marshal(executePayload{Entry: entry, TimeoutMillis: timeoutMillis})
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("worker child %s: encode execute payload: %w", c.id, err)
	}

	execCtx := ctx
	var cancel context.CancelFunc
	if timeoutMillis > 0 {
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(timeoutMillis)*time.Millisecond)
		defer cancel()
	}

	env, err := c.bus.Send(execCtx, c.id, TypeExecute, payload)
	if err != nil {
		if execCtx.Err() != nil {
			return domain.Outcome{Success: false, Error: &domain.ExecutionError{Kind: domain.KindTimeout, Message: "execution exceeded configured timeout"}}, nil
		}
		return domain.Outcome{}, fmt.Errorf("worker child %s: %w", c.id, err)
	}

	var result resultPayload
	if err := json.Unmarshal(env.Payload, &result); err != nil {
		return domain.Outcome{}, fmt.Errorf("worker child %s: decode result: %w", c.id, err)
	}
	return result.Outcome, nil
}

// Kill marks the instance dead. The caller (application/childproc.Supervisor)
// is responsible for actually terminating the OS process; this method only
// updates the local state so subsequent Execute calls fail fast.
func (c *Child) Kill(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = domain.Dead
	return nil
}

// MarkDead is called by the peer.lost listener bootstrap registers for
// this worker's id, so State() reflects reality even without an explicit
// Kill call.
func (c *Child) MarkDead() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = domain.Dead
}

var _ domain.Instance = (*Child)(nil)
