// Package compiler declares the Compiler port. The concrete compiler
// implementation is out of scope for this core (spec.md §1); the core only
// needs to call it and handle its errors.
package compiler

import "context"

// Compiler transforms test source into a form the Sandbox can evaluate.
// Concrete implementations (transpilers, bundlers) live outside this
// module; the default adapter (internal/infrastructure/compiler) is a
// passthrough used when the test source is already directly evaluable.
type Compiler interface {
	Compile(ctx context.Context, source []byte, filename string) (compiled []byte, err error)
}

// Error wraps a failure to compile a specific file. The controller treats
// this as domain/run.ErrorKindCompile and, per spec.md §7, never retries it
// by default.
type Error struct {
	Filename string
	Cause    error
}

func (e *Error) Error() string {
	return "compile " + e.Filename + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }
