// Package browser declares the domain vocabulary the Browser-proxy
// controller operates on: an applicant (one browser session per
// Worker+test), the session state it owns, the dialog auto-handling queue,
// and the BrowserDriver port the controller brokers requests through
// (spec.md §3 "Browser session", §4.I, §4.J).
package browser

import (
	"context"
	"errors"
	"sync"
)

// ApplicantID identifies one browser session, one per Worker+test.
type ApplicantID string

// Command is the method name a worker asks the Browser-proxy to run
// against its applicant's session (navigation, element query, input,
// waits, screenshots, cookies, frames, windows, file upload, script
// execute, session lifecycle — spec.md §4.J's IBrowserProxyPlugin set).
type Command struct {
	Applicant ApplicantID
	Method    string
	Args      []any
}

// Result is a driver response or a structured failure, carried back to the
// requesting worker over Transport.
type Result struct {
	Value any
	Err   *Error
}

// ErrorKind names one of spec.md §7's BrowserError subtypes.
type ErrorKind string

// BrowserError subtypes.
const (
	ErrKindSessionGone     ErrorKind = "SessionGone"
	ErrKindElementNotFound ErrorKind = "ElementNotFound"
	ErrKindTimeout         ErrorKind = "Timeout"
	ErrKindDriverFatal     ErrorKind = "DriverFatal"
)

// Error is the structured failure a driver exception is translated into
// before crossing back to the worker.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

// Dialog is one native dialog event (alert/confirm/prompt) the driver
// observed for an applicant.
type Dialog struct {
	Type   string
	Text   string
	Result string // "accept" or "dismiss", set once handled.
}

// DialogQueue buffers dialog events for one applicant and applies the
// hard-coded policy spec.md §4.I documents: accept the first dialog,
// dismiss every subsequent one. Whether this is deliberate product
// behavior or an artifact of the original driver wrapper is an open
// question per spec.md §9 — it is preserved here unchanged, not inferred.
type DialogQueue struct {
	mu      sync.Mutex
	dialogs []Dialog
}

// Push records a newly observed dialog and returns the decision the
// controller should act on immediately: "accept" for the first dialog this
// queue has ever seen, "dismiss" for every one after.
func (q *DialogQueue) Push(d Dialog) Dialog {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.dialogs) == 0 {
		d.Result = "accept"
	} else {
		d.Result = "dismiss"
	}
	q.dialogs = append(q.dialogs, d)
	return d
}

// All returns every dialog observed so far, in arrival order.
func (q *DialogQueue) All() []Dialog {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Dialog, len(q.dialogs))
	copy(out, q.dialogs)
	return out
}

// ElementRef is a pseudo element identifier returned from a driver's
// elements() call. Per design note §9, low-level id-based element commands
// are not supported unless a locator map is maintained; Session keeps one,
// but callers are expected to prefer selectors.
type ElementRef string

// Session is one applicant's live browser state: a window/page handle
// tree key, a cookie jar placeholder (opaque to this domain layer — the
// driver owns cookie semantics), a dialog queue, and the pseudo-element
// locator map.
type Session struct {
	Applicant ApplicantID
	WorkerID  string

	mu        sync.Mutex
	windows   []string
	locators  map[ElementRef]string
	Dialogs   *DialogQueue
	CookieJar any
}

// NewSession creates an empty Session for applicant, owned by workerID.
func NewSession(applicant ApplicantID, workerID string) *Session {
	return &Session{
		Applicant: applicant,
		WorkerID:  workerID,
		locators:  make(map[ElementRef]string),
		Dialogs:   &DialogQueue{},
	}
}

// BindLocator records the selector a pseudo element id stands for.
func (s *Session) BindLocator(ref ElementRef, selector string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locators[ref] = selector
}

// Locator resolves a pseudo element id back to its selector, or reports it
// unknown — callers should surface ErrKindElementNotFound rather than
// emulate a low-level id-based command (design note §9).
func (s *Session) Locator(ref ElementRef) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, ok := s.locators[ref]
	return sel, ok
}

// PushWindow records a newly opened window/page handle.
func (s *Session) PushWindow(handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = append(s.windows, handle)
}

// Windows returns the current window/page handle stack.
func (s *Session) Windows() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.windows))
	copy(out, s.windows)
	return out
}

// ErrSessionGone is returned by operations against an applicant with no
// live Session.
var ErrSessionGone = errors.New("browser: session gone")

// Driver is the BrowserDriver port: an opaque set of named methods with
// structured arguments and results, brokered one command at a time per
// applicant (spec.md §4.J). The concrete backend (Selenium/Playwright) is
// out of scope for this core.
type Driver interface {
	// Execute runs one command against the driver and returns its result
	// or a structured Error.
	Execute(ctx context.Context, cmd Command) Result

	// End tears down applicant's session on the driver side. Idempotent.
	End(ctx context.Context, applicant ApplicantID) error

	// Kill forcibly terminates the driver's underlying process or
	// connection, used when End does not complete within a budget.
	Kill(ctx context.Context) error
}
