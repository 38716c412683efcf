package controller

import (
	"context"
	"sync"

	domainworker "github.com/danbao/testring-sub000/internal/domain/worker"
)

// entryQueue is the run's FIFO of dispatchable test entries. Its capacity
// is fixed at len(initial): at any instant, each original entry is either
// sitting in the channel, being executed by a slot, or asleep in a retry
// delay goroutine about to be pushed back — never more than one copy in
// flight at once, so the channel never needs to grow.
//
// outstanding counts entries not yet finally resolved (succeeded, or
// failed with no further retry). The channel is closed once outstanding
// reaches zero, which is how idle slots learn there is nothing left to
// wait for.
type entryQueue struct {
	ch chan domainworker.TestEntry

	mu          sync.Mutex
	outstanding int
}

func newEntryQueue(initial []domainworker.TestEntry) *entryQueue {
	q := &entryQueue{
		ch:          make(chan domainworker.TestEntry, len(initial)),
		outstanding: len(initial),
	}
	for _, e := range initial {
		q.ch <- e
	}
	return q
}

// push re-enqueues entry, typically a retried TestEntry with RetriesUsed
// incremented. The entry was already counted in outstanding when it was
// first queued, so push never touches the counter.
func (q *entryQueue) push(entry domainworker.TestEntry) {
	q.ch <- entry
}

// pop blocks until an entry is available, the queue is permanently
// drained (outstanding reached zero), or ctx/bailCtx is canceled.
func (q *entryQueue) pop(ctx, bailCtx context.Context) (domainworker.TestEntry, bool) {
	select {
	case entry, ok := <-q.ch:
		return entry, ok
	case <-bailCtx.Done():
		return domainworker.TestEntry{}, false
	case <-ctx.Done():
		return domainworker.TestEntry{}, false
	}
}

// resolve marks one original entry as finally done, closing the channel
// once every entry has been accounted for.
func (q *entryQueue) resolve() {
	q.mu.Lock()
	q.outstanding--
	drained := q.outstanding == 0
	q.mu.Unlock()
	if drained {
		close(q.ch)
	}
}
