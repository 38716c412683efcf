// Package browserproxy implements the single-process broker that routes
// per-worker browser commands to a configured domain/browser.Driver,
// serializing requests per applicant while letting different applicants
// run concurrently up to a threadCount ceiling (spec.md §4.I). The
// per-applicant map shape is grounded on the retrieved daemon's
// per-service maps (application/supervisor.Supervisor.managers); the
// kill() sequencing mirrors Supervisor.Stop's
// stop-cooperatively-then-wait-then-force shape.
package browserproxy

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainbrowser "github.com/danbao/testring-sub000/internal/domain/browser"
)

// DefaultThreadCount is the default ceiling on simultaneously in-flight
// commands across every applicant.
const DefaultThreadCount = 10

// applicantState serializes command execution for one applicant: a mutex
// held for the duration of each Execute call is enough, since the driver
// itself is single-threaded from that applicant's perspective.
type applicantState struct {
	mu      sync.Mutex
	session *domainbrowser.Session
}

// Controller is the Browser-proxy broker. One Controller exists per run,
// shared by every worker's browser client over Transport.
type Controller struct {
	driver domainbrowser.Driver

	sem chan struct{}

	mu         sync.Mutex
	applicants map[domainbrowser.ApplicantID]*applicantState
	byWorker   map[string]map[domainbrowser.ApplicantID]struct{}
}

// New creates a Controller brokering through driver, capping simultaneously
// in-flight commands at threadCount (<= 0 falls back to DefaultThreadCount).
func New(driver domainbrowser.Driver, threadCount int) *Controller {
	if threadCount <= 0 {
		threadCount = DefaultThreadCount
	}
	return &Controller{
		driver:     driver,
		sem:        make(chan struct{}, threadCount),
		applicants: make(map[domainbrowser.ApplicantID]*applicantState),
		byWorker:   make(map[string]map[domainbrowser.ApplicantID]struct{}),
	}
}

// Request executes cmd for workerID, creating the applicant's Session on
// first contact. Commands against the same applicant observe program order
// (spec.md §8 scenario 6); commands against different applicants may run
// concurrently subject to the threadCount ceiling.
func (c *Controller) Request(ctx context.Context, workerID string, cmd domainbrowser.Command) domainbrowser.Result {
	st := c.applicantFor(workerID, cmd.Applicant)

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return domainbrowser.Result{Err: &domainbrowser.Error{Kind: domainbrowser.ErrKindTimeout, Message: ctx.Err().Error()}}
	}
	defer func() { <-c.sem }()

	st.mu.Lock()
	defer st.mu.Unlock()

	res := c.driver.Execute(ctx, cmd)
	if res.Err == nil {
		c.observeDialogs(st, cmd, res)
	}
	return res
}

// observeDialogs buffers any dialog the driver reports back for this
// applicant's session, applying the accept-first/dismiss-rest policy
// domain/browser.DialogQueue implements. The driver is expected to surface
// a dialog observation as a Result.Value of type domainbrowser.Dialog when
// cmd.Method requests one (e.g. "waitForDialog"); other command shapes are
// passed through untouched.
func (c *Controller) observeDialogs(st *applicantState, cmd domainbrowser.Command, res domainbrowser.Result) {
	d, ok := res.Value.(domainbrowser.Dialog)
	if !ok {
		return
	}
	st.session.Dialogs.Push(d)
}

func (c *Controller) applicantFor(workerID string, applicant domainbrowser.ApplicantID) *applicantState {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.applicants[applicant]
	if !ok {
		st = &applicantState{session: domainbrowser.NewSession(applicant, workerID)}
		c.applicants[applicant] = st
		if c.byWorker[workerID] == nil {
			c.byWorker[workerID] = make(map[domainbrowser.ApplicantID]struct{})
		}
		c.byWorker[workerID][applicant] = struct{}{}
	}
	return st
}

// Session returns the live session for applicant, if any.
func (c *Controller) Session(applicant domainbrowser.ApplicantID) (*domainbrowser.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.applicants[applicant]
	if !ok {
		return nil, false
	}
	return st.session, true
}

// WorkerDisconnected calls Driver.End for every applicant held by workerID,
// per spec.md §4.I's "On worker disconnect" contract.
func (c *Controller) WorkerDisconnected(ctx context.Context, workerID string) {
	c.mu.Lock()
	applicants := make([]domainbrowser.ApplicantID, 0, len(c.byWorker[workerID]))
	for a := range c.byWorker[workerID] {
		applicants = append(applicants, a)
	}
	delete(c.byWorker, workerID)
	for _, a := range applicants {
		delete(c.applicants, a)
	}
	c.mu.Unlock()

	for _, a := range applicants {
		_ = c.driver.End(ctx, a)
	}
}

// Kill runs the controller's own shutdown sequence (spec.md §4.I): end
// every session cooperatively, wait up to sessionClose, then force the
// driver down. onRelease fires once per session that was live at the time
// Kill was called, mirroring the server's ON_RELEASE hook point.
func (c *Controller) Kill(ctx context.Context, sessionClose time.Duration, onRelease func(domainbrowser.ApplicantID)) error {
	c.mu.Lock()
	applicants := make([]domainbrowser.ApplicantID, 0, len(c.applicants))
	for a := range c.applicants {
		applicants = append(applicants, a)
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, a := range applicants {
			_ = c.driver.End(ctx, a)
			if onRelease != nil {
				onRelease(a)
			}
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(sessionClose):
		if err := c.driver.Kill(ctx); err != nil {
			return fmt.Errorf("browserproxy: force kill: %w", err)
		}
	}

	c.mu.Lock()
	c.applicants = make(map[domainbrowser.ApplicantID]*applicantState)
	c.byWorker = make(map[string]map[domainbrowser.ApplicantID]struct{})
	c.mu.Unlock()
	return nil
}
