package worker

import "context"

// Instance is the port the controller drives, identical whether backed by
// a child process (application/worker.Child) or an in-process
// executor (application/worker.Local), per spec.md §4.G's "the
// contract is identical" requirement for local mode.
type Instance interface {
	// Execute runs entry to completion, applying the configured timeout.
	// Returns ErrBusy if the worker is already executing a test.
	Execute(ctx context.Context, entry TestEntry, timeout int64) (Outcome, error)

	// Kill terminates the worker. Idempotent: killing an already-dead
	// worker is a no-op.
	Kill(ctx context.Context) error

	// WorkerID returns this instance's stable identifier.
	WorkerID() string

	// State returns the worker's current lifecycle state.
	State() State
}
