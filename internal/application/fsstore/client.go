package fsstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	domain "github.com/danbao/testring-sub000/internal/domain/fsstore"
)

// Client is the worker-side handle onto a Requester. Every call to
// acquire/release is keyed by a fresh RequestID so a single worker can have
// several outstanding file objects at once.
type Client struct {
	workerID string
	req      Requester
}

// NewClient creates a Client that arbitrates through req on behalf of
// workerID.
func NewClient(workerID string, req Requester) *Client {
	return &Client{workerID: workerID, req: req}
}

// Handle is a granted slot: a fullPath plus the token that releases it.
// Release is idempotent and safe to call more than once or never (a leaked
// Handle simply holds its slot until the owning process exits and the
// server's bookkeeping is torn down with it).
type Handle struct {
	FullPath string
	client   *Client
	token    string
}

// Release returns the slot. Safe to call multiple times.
func (h *Handle) Release(ctx context.Context) error {
	if h.token == "" {
		return nil
	}
	token := h.token
	h.token = ""
	return h.client.req.Release(ctx, token)
}

func (c *Client) acquire(ctx context.Context, action domain.Action, meta domain.Meta) (*Handle, error) {
	req := domain.Request{
		RequestID: uuid.NewString(),
		WorkerID:  c.workerID,
		Action:    action,
		Meta:      meta,
	}
	path, token, err := c.req.Acquire(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fsstore client: acquire %s: %w", action, err)
	}
	return &Handle{FullPath: path, client: c, token: token}, nil
}

// Lock acquires exclusive access to the file described by meta, blocking
// until granted.
func (c *Client) Lock(ctx context.Context, meta domain.Meta) (*Handle, error) {
	return c.acquire(ctx, domain.Lock, meta)
}

// Access acquires shared access to the file described by meta.
func (c *Client) Access(ctx context.Context, meta domain.Meta) (*Handle, error) {
	return c.acquire(ctx, domain.Access, meta)
}

// Unlink retires the file described by meta. Blocks until no Lock or Access
// is outstanding on it.
func (c *Client) Unlink(ctx context.Context, meta domain.Meta) (*Handle, error) {
	return c.acquire(ctx, domain.Unlink, meta)
}

// WaitForUnlock blocks until fullPath currently has no outstanding Lock.
func (c *Client) WaitForUnlock(ctx context.Context, fullPath string) error {
	return c.req.WaitForUnlock(ctx, fullPath)
}

// Transaction runs fn against a freshly acquired Lock+Access pair on meta,
// releasing both when fn returns regardless of outcome (commit on nil
// error, rollback-by-release otherwise — the server has no undo log, so
// "rollback" means the slot becomes available to the next waiter with
// whatever fn already wrote).
func (c *Client) Transaction(ctx context.Context, meta domain.Meta, fn func(fullPath string) error) error {
	lock, err := c.Lock(ctx, meta)
	if err != nil {
		return err
	}
	defer lock.Release(ctx)

	access, err := c.Access(ctx, meta)
	if err != nil {
		return err
	}
	defer access.Release(ctx)

	return fn(lock.FullPath)
}
