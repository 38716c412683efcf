package worker_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appworker "github.com/danbao/testring-sub000/internal/application/worker"
	domaintransport "github.com/danbao/testring-sub000/internal/domain/transport"
	domainworker "github.com/danbao/testring-sub000/internal/domain/worker"
)

type fakeChildBus struct {
	reply domaintransport.Envelope
	err   error
}

func (f *fakeChildBus) Send(ctx context.Context, destID, typ string, payload []byte) (domaintransport.Envelope, error) {
	return f.reply, f.err
}

func outcomeEnvelope(t *testing.T, success bool) domaintransport.Envelope {
	t.Helper()
	payload, err := json.Marshal(struct {
		Outcome domainworker.Outcome `json:"outcome"`
	}{Outcome: domainworker.Outcome{Success: success}})
	require.NoError(t, err)
	return domaintransport.Envelope{Payload: payload}
}

func TestChild_ExecuteReturnsDecodedOutcome(t *testing.T) {
	bus := &fakeChildBus{reply: outcomeEnvelope(t, true)}
	c := appworker.NewChild("worker-1", bus)

	outcome, err := c.Execute(context.Background(), domainworker.TestEntry{}, 1000)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, domainworker.Idle, c.State())
}

// TestChild_MarkDeadFailsFutureExecuteImmediately is the contract the
// controller's pool relies on to detect a worker that died while idle
// (nothing in flight to return a synchronous Execute error): once
// Transport's peer.lost handler calls MarkDead, the next dispatch against
// this instance fails fast with ErrDead instead of trying to reach a child
// process that no longer exists.
func TestChild_MarkDeadFailsFutureExecuteImmediately(t *testing.T) {
	bus := &fakeChildBus{reply: outcomeEnvelope(t, true)}
	c := appworker.NewChild("worker-1", bus)

	c.MarkDead()

	assert.Equal(t, domainworker.Dead, c.State())
	_, err := c.Execute(context.Background(), domainworker.TestEntry{}, 1000)
	assert.ErrorIs(t, err, domainworker.ErrDead)
}

func TestChild_KillMarksDead(t *testing.T) {
	bus := &fakeChildBus{reply: outcomeEnvelope(t, true)}
	c := appworker.NewChild("worker-1", bus)

	require.NoError(t, c.Kill(context.Background()))
	assert.Equal(t, domainworker.Dead, c.State())
}
