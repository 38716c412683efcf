// Package clock declares the Clock port used by retry delays, test timeouts,
// and anything else that must stay testable without real wall-clock waits.
package clock

import (
	"context"
	"time"
)

// Clock abstracts time so the controller and worker can be driven by a fake
// implementation in tests.
type Clock interface {
	Now() time.Time

	// Sleep blocks for d or until ctx is canceled, whichever comes first.
	// Returns ctx.Err() on cancellation, nil otherwise.
	Sleep(ctx context.Context, d time.Duration) error
}
