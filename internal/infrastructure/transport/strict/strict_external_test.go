package strict_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/danbao/testring-sub000/internal/domain/transport"
	"github.com/danbao/testring-sub000/internal/infrastructure/transport/strict"
)

type fakeBus struct {
	lastPayload []byte
}

func (f *fakeBus) Broadcast(ctx context.Context, typ string, payload []byte) error {
	f.lastPayload = payload
	return nil
}
func (f *fakeBus) BroadcastLocal(typ string, payload []byte) {}
func (f *fakeBus) BroadcastFrom(ctx context.Context, typ string, payload []byte, sourceID string) error {
	f.lastPayload = payload
	return nil
}
func (f *fakeBus) Send(ctx context.Context, destID, typ string, payload []byte) (domain.Envelope, error) {
	f.lastPayload = payload
	return domain.Envelope{}, nil
}
func (f *fakeBus) On(typ string, h domain.Handler) domain.Cancel         { return func() {} }
func (f *fakeBus) Once(typ string, h domain.Handler) domain.Cancel       { return func() {} }
func (f *fakeBus) OnceFrom(s, t string, h domain.Handler) domain.Cancel  { return func() {} }
func (f *fakeBus) RegisterChild(childID string, link domain.ChildLink)   {}
func (f *fakeBus) IsChild() bool                                        { return false }

func TestBus_AcceptsValidObjectPayload(t *testing.T) {
	inner := &fakeBus{}
	b, err := strict.New(inner, strict.DefaultSchema)
	require.NoError(t, err)

	err = b.Broadcast(context.Background(), "test.execute", []byte(`{"entry":"a.js"}`))
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"entry":"a.js"}`), inner.lastPayload)
}

func TestBus_RejectsNonObjectPayload(t *testing.T) {
	inner := &fakeBus{}
	b, err := strict.New(inner, strict.DefaultSchema)
	require.NoError(t, err)

	err = b.Broadcast(context.Background(), "test.execute", []byte(`"just a string"`))
	assert.Error(t, err)
	assert.Nil(t, inner.lastPayload)
}

func TestBus_EmptyPayloadSkipsValidation(t *testing.T) {
	inner := &fakeBus{}
	b, err := strict.New(inner, strict.DefaultSchema)
	require.NoError(t, err)

	_, err = b.Send(context.Background(), "worker1", "test.execute", nil)
	assert.NoError(t, err)
}
