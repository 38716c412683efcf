// Package compiler provides the default Compiler adapter: a passthrough
// used when test source is already directly evaluable by the Sandbox and
// no transpile/bundle step is configured (spec.md §4.D, §4.J).
package compiler

import (
	"context"

	domaincompiler "github.com/danbao/testring-sub000/internal/domain/compiler"
)

// Passthrough returns source unchanged. It exists so bootstrap always has
// a domaincompiler.Compiler to wire even when no real transpiler is
// configured.
type Passthrough struct{}

func (Passthrough) Compile(ctx context.Context, source []byte, filename string) ([]byte, error) {
	return source, nil
}

var _ domaincompiler.Compiler = Passthrough{}
