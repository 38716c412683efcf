package hook_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danbao/testring-sub000/internal/application/hook"
	domain "github.com/danbao/testring-sub000/internal/domain/hook"
)

func TestRegistry_WriteChainThreadsValueInOrder(t *testing.T) {
	r := hook.NewRegistry("beforeTest")

	var order []string
	require.NoError(t, r.RegisterWrite("beforeTest", func(_ context.Context, v any) (any, error) {
		order = append(order, "first")
		return v.(int) + 1, nil
	}))
	require.NoError(t, r.RegisterWrite("beforeTest", func(_ context.Context, v any) (any, error) {
		order = append(order, "second")
		return v.(int) * 2, nil
	}))

	out, err := r.Call(context.Background(), "beforeTest", 1)
	require.NoError(t, err)
	assert.Equal(t, 4, out) // (1+1)*2
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestRegistry_ReadChainRunsAfterWritesAndIgnoresReturn(t *testing.T) {
	r := hook.NewRegistry("afterTest")
	require.NoError(t, r.RegisterWrite("afterTest", func(_ context.Context, v any) (any, error) {
		return "transformed", nil
	}))

	var observed any
	require.NoError(t, r.RegisterRead("afterTest", func(_ context.Context, v any) error {
		observed = v
		return nil
	}))

	out, err := r.Call(context.Background(), "afterTest", "original")
	require.NoError(t, err)
	assert.Equal(t, "transformed", out)
	assert.Equal(t, "transformed", observed)
}

func TestRegistry_ReadOnlyChainReturnsValueUnchanged(t *testing.T) {
	r := hook.NewRegistry("afterRun")
	require.NoError(t, r.RegisterRead("afterRun", func(_ context.Context, v any) error { return nil }))

	out, err := r.Call(context.Background(), "afterRun", []string{"errs"})
	require.NoError(t, err)
	assert.Equal(t, []string{"errs"}, out)
}

func TestRegistry_UnknownNameIsAnError(t *testing.T) {
	r := hook.NewRegistry("known")

	err := r.RegisterWrite("unknown", func(_ context.Context, v any) (any, error) { return v, nil })
	assert.ErrorIs(t, err, domain.ErrUnknownExtensionPoint)

	_, err = r.Call(context.Background(), "unknown", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownExtensionPoint)
}

func TestRegistry_CallbackErrorAbortsChain(t *testing.T) {
	r := hook.NewRegistry("shouldNotStart")
	boom := errors.New("boom")

	var secondRan bool
	require.NoError(t, r.RegisterWrite("shouldNotStart", func(_ context.Context, v any) (any, error) {
		return nil, boom
	}))
	require.NoError(t, r.RegisterWrite("shouldNotStart", func(_ context.Context, v any) (any, error) {
		secondRan = true
		return v, nil
	}))

	_, err := r.Call(context.Background(), "shouldNotStart", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, secondRan)
}

func TestRegistry_ReentrancyBeyondDepthFails(t *testing.T) {
	r := hook.NewRegistry("recurse")
	var callDepth func(ctx context.Context, v any) (any, error)
	callDepth = func(ctx context.Context, v any) (any, error) {
		return r.Call(ctx, "recurse", v)
	}
	require.NoError(t, r.RegisterWrite("recurse", func(ctx context.Context, v any) (any, error) {
		n := v.(int)
		if n <= 0 {
			return n, nil
		}
		return callDepth(ctx, n-1)
	}))

	_, err := r.Call(context.Background(), "recurse", domain.MaxReentrantDepth+2)
	assert.ErrorIs(t, err, domain.ErrReentrant)
}
