// Package browserdriver provides the default BrowserDriver adapter: a
// concrete browser backend (a real WebDriver/CDP client) is explicitly out
// of scope for this engine (spec.md §1), so Stub exists to give
// application/browserproxy.Controller something to drive in the absence of
// one — acknowledging every command for a live applicant as immediately
// successful. It emits no dialog events.
package browserdriver

import (
	"context"
	"sync"

	domainbrowser "github.com/danbao/testring-sub000/internal/domain/browser"
)

// Stub is a no-op Driver: it never talks to a real browser. Every command
// succeeds until End is called for its applicant; after that, commands for
// that applicant fail with ErrKindSessionGone. Kill forgets every ended
// applicant. Useful for local development, tests,
// and as bootstrap's fallback when no real driver is configured.
type Stub struct {
	mu     sync.Mutex
	ended  map[domainbrowser.ApplicantID]bool
}

func NewStub() *Stub {
	return &Stub{ended: make(map[domainbrowser.ApplicantID]bool)}
}

func (s *Stub) Execute(ctx context.Context, cmd domainbrowser.Command) domainbrowser.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended[cmd.Applicant] {
		return domainbrowser.Result{Err: &domainbrowser.Error{Kind: domainbrowser.ErrKindSessionGone, Message: string(cmd.Applicant)}}
	}
	return domainbrowser.Result{Value: nil}
}

func (s *Stub) End(ctx context.Context, applicant domainbrowser.ApplicantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended[applicant] = true
	return nil
}

func (s *Stub) Kill(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.ended {
		delete(s.ended, id)
	}
	return nil
}

var _ domainbrowser.Driver = (*Stub)(nil)
