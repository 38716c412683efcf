// Package report builds the run-completion summary bootstrap's
// App.RunQueue returns to its caller once runQueue returns (spec.md §4.H
// "afterRun", §6). Timestamps use
// google.golang.org/protobuf/types/known/timestamppb, the same well-known
// type the teacher and the rest of the pack use wherever a wire-stable
// instant needs to cross a gRPC boundary, even though this engine has no
// generated service of its own beyond the stock health check.
package report

import (
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	domainrun "github.com/danbao/testring-sub000/internal/domain/run"
)

// RunReport summarizes one completed runQueue call.
type RunReport struct {
	StartedAt  *timestamppb.Timestamp
	FinishedAt *timestamppb.Timestamp
	Errors     []domainrun.Error
}

// New builds a RunReport from wall-clock start/finish instants and the
// errors runQueue returned.
func New(startedAt, finishedAt time.Time, errs []domainrun.Error) RunReport {
	return RunReport{
		StartedAt:  timestamppb.New(startedAt),
		FinishedAt: timestamppb.New(finishedAt),
		Errors:     errs,
	}
}

// Duration is how long the run took, derived from the two timestamps.
func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.AsTime().Sub(r.StartedAt.AsTime())
}

// Passed reports whether the run finished with no errors.
func (r RunReport) Passed() bool { return len(r.Errors) == 0 }
