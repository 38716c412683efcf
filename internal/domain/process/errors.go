package process

import "errors"

// Sentinel errors for child-process lifecycle operations.
var (
	// ErrAlreadyRunning indicates an attempt to start a process id that is
	// already tracked.
	ErrAlreadyRunning = errors.New("process: already running")
	// ErrNotRunning indicates an attempt to stop or signal an id that is not
	// currently tracked.
	ErrNotRunning = errors.New("process: not running")
	// ErrEmptyCommand indicates a Spec with no Command was passed to Start.
	ErrEmptyCommand = errors.New("process: empty command")
)
