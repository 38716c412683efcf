package worker

import (
	"context"
	"time"
)

// contextWithTimeoutMillis derives a child context bounded by ms
// milliseconds from ctx.
func contextWithTimeoutMillis(ctx context.Context, ms int64) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
}
