package sandbox_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsandbox "github.com/danbao/testring-sub000/internal/application/sandbox"
	domain "github.com/danbao/testring-sub000/internal/domain/sandbox"
)

func TestSandbox_EvaluateReturnsExports(t *testing.T) {
	sb := appsandbox.New()
	sb.RegisterLoader("/project/a.js", func(ctx context.Context, sctx domain.Context, require appsandbox.RequireFunc, exports *appsandbox.Exports) error {
		exports.Set("value", 42)
		return nil
	})

	out, err := sb.Evaluate(context.Background(), nil, domain.Context{Filename: "/project/a.js"}, domain.ModuleGraph{})
	require.NoError(t, err)

	exp := out.(*appsandbox.Exports)
	v, ok := exp.Get("value")
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestSandbox_UnregisteredPathIsModuleNotFound(t *testing.T) {
	sb := appsandbox.New()
	_, err := sb.Evaluate(context.Background(), nil, domain.Context{Filename: "/project/missing.js"}, domain.ModuleGraph{})
	assert.ErrorIs(t, err, domain.ErrModuleNotFound)
}

func TestSandbox_RequireResolvesThroughGraph(t *testing.T) {
	sb := appsandbox.New()
	sb.RegisterLoader("/project/dep.js", func(ctx context.Context, sctx domain.Context, require appsandbox.RequireFunc, exports *appsandbox.Exports) error {
		exports.Set("greeting", "hi")
		return nil
	})
	sb.RegisterLoader("/project/entry.js", func(ctx context.Context, sctx domain.Context, require appsandbox.RequireFunc, exports *appsandbox.Exports) error {
		dep, err := require("./dep")
		if err != nil {
			return err
		}
		v, _ := dep.Get("greeting")
		exports.Set("relayed", v)
		return nil
	})

	graph := domain.ModuleGraph{
		"/project/entry.js": {
			"./dep": domain.Module{Path: "/project/dep.js"},
		},
	}

	out, err := sb.Evaluate(context.Background(), nil, domain.Context{Filename: "/project/entry.js"}, graph)
	require.NoError(t, err)

	exp := out.(*appsandbox.Exports)
	v, ok := exp.Get("relayed")
	require.True(t, ok)
	assert.Equal(t, "hi", v)
}

func TestSandbox_CycleReturnsPartialExports(t *testing.T) {
	sb := appsandbox.New()
	sb.RegisterLoader("/project/a.js", func(ctx context.Context, sctx domain.Context, require appsandbox.RequireFunc, exports *appsandbox.Exports) error {
		exports.Set("fromA", true)
		b, err := require("./b")
		if err != nil {
			return err
		}
		_, bSawA := b.Get("sawAFromA")
		exports.Set("bSawAWhileLoadingB", bSawA)
		return nil
	})
	sb.RegisterLoader("/project/b.js", func(ctx context.Context, sctx domain.Context, require appsandbox.RequireFunc, exports *appsandbox.Exports) error {
		a, err := require("./a")
		if err != nil {
			return err
		}
		_, sawA := a.Get("fromA")
		exports.Set("sawAFromA", sawA)
		return nil
	})

	graph := domain.ModuleGraph{
		"/project/a.js": {"./b": domain.Module{Path: "/project/b.js"}},
		"/project/b.js": {"./a": domain.Module{Path: "/project/a.js"}},
	}

	out, err := sb.Evaluate(context.Background(), nil, domain.Context{Filename: "/project/a.js"}, graph)
	require.NoError(t, err)

	exp := out.(*appsandbox.Exports)
	v, ok := exp.Get("fromA")
	require.True(t, ok)
	assert.Equal(t, true, v)
}
