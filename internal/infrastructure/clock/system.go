// Package clock provides the real, wall-clock-backed implementation of the
// domain clock.Clock port.
package clock

import (
	"context"
	"time"

	domain "github.com/danbao/testring-sub000/internal/domain/clock"
)

// System is a Clock backed by the OS wall clock and time.Timer.
type System struct{}

// New returns a ready-to-use System clock.
func New() System { return System{} }

// Now returns the current wall-clock time.
func (System) Now() time.Time { return time.Now() }

// Sleep blocks for d, or returns early with ctx.Err() if ctx is canceled
// first.
func (System) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ domain.Clock = System{}
