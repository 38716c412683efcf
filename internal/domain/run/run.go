// Package run provides the domain types for the test-run-controller: the
// queue/pool configuration, the retry and bail policy knobs, and the
// shape of the errors a completed run reports (spec.md §4.H, §6).
package run

// PoolConfig controls worker pool sizing (spec.md §6).
type PoolConfig struct {
	// WorkerLimit caps concurrently-executing tests. Zero means no
	// capacity at all: runQueue returns immediately with no dispatch and
	// no errors. A negative value is the "local" sentinel: every test runs
	// through a single in-process worker instead of a pool.
	WorkerLimit int
	// RestartWorker kills and respawns a worker after every test instead
	// of reusing it.
	RestartWorker bool
}

// RetryConfig controls the retry/bail policy (spec.md §6).
type RetryConfig struct {
	RetryCount int
	// RetryDelayMillis is how long a failed entry waits before
	// re-enqueueing.
	RetryDelayMillis int64
	Bail             bool
}

// TimeoutConfig controls the timeouts the controller and its collaborators
// enforce (spec.md §6).
type TimeoutConfig struct {
	TestTimeoutMillis  int64
	ContextCloseMillis int64
	BrowserCloseMillis int64
	SessionCloseMillis int64
}

// Config bundles every knob runQueue needs.
type Config struct {
	Pool    PoolConfig
	Retry   RetryConfig
	Timeout TimeoutConfig
}

// ErrorKind names one of spec.md §7's error-taxonomy members as it appears
// in a RunError.
type ErrorKind string

// Error kinds a RunError may carry.
const (
	ErrorKindCompile    ErrorKind = "CompileError"
	ErrorKindDependency ErrorKind = "DependencyError"
	ErrorKindSandbox    ErrorKind = "SandboxError"
	ErrorKindTimeout    ErrorKind = "Timeout"
	ErrorKindTransport  ErrorKind = "TransportError"
	ErrorKindPeerLost   ErrorKind = "PeerLost"
	ErrorKindBailCancel ErrorKind = "BailCancel"
)

// Error is one entry of runQueue's returned errors[] (spec.md §4.H, §6).
type Error struct {
	TestPath    string
	RetriesUsed int
	Kind        ErrorKind
	Message     string
	// Payload carries opaque diagnostic data (a stack trace, a screenshot
	// handle) the caller may attach without the controller interpreting it.
	Payload any
}
