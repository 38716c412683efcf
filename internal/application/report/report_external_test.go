package report_test

import (
	"testing"
	"time"

	"github.com/danbao/testring-sub000/internal/application/report"
	domainrun "github.com/danbao/testring-sub000/internal/domain/run"
)

func TestNew_PassedWhenNoErrors(t *testing.T) {
	started := time.Unix(1000, 0)
	finished := started.Add(5 * time.Second)

	r := report.New(started, finished, nil)

	if !r.Passed() {
		t.Fatal("Passed() = false, want true")
	}
	if r.Duration() != 5*time.Second {
		t.Fatalf("Duration() = %v, want 5s", r.Duration())
	}
}

func TestNew_FailedWhenErrorsPresent(t *testing.T) {
	started := time.Unix(1000, 0)
	finished := started.Add(time.Second)
	errs := []domainrun.Error{{TestPath: "a.test.js", Message: "boom"}}

	r := report.New(started, finished, errs)

	if r.Passed() {
		t.Fatal("Passed() = true, want false")
	}
	if len(r.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(r.Errors))
	}
}

func TestNew_TimestampsRoundTrip(t *testing.T) {
	started := time.Unix(2000, 0).UTC()
	finished := time.Unix(2010, 0).UTC()

	r := report.New(started, finished, nil)

	if !r.StartedAt.AsTime().Equal(started) {
		t.Fatalf("StartedAt = %v, want %v", r.StartedAt.AsTime(), started)
	}
	if !r.FinishedAt.AsTime().Equal(finished) {
		t.Fatalf("FinishedAt = %v, want %v", r.FinishedAt.AsTime(), finished)
	}
}
