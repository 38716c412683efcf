package fsstore

import (
	"context"

	domain "github.com/danbao/testring-sub000/internal/domain/fsstore"
)

// Requester is the operation set a Client needs from wherever the real
// arbitration happens. *Server itself satisfies Requester, so a
// controller-local Client can be built straight from one; it is the only
// implementation in this module, and no Transport-backed Requester exists.
type Requester interface {
	Acquire(ctx context.Context, req domain.Request) (fullPath, releaseToken string, err error)
	Release(ctx context.Context, token string) error
	WaitForUnlock(ctx context.Context, fullPath string) error
}

var _ Requester = (*Server)(nil)
