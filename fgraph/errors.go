// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package fgraph

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// Backend errors: recovered where possible (allocation
// failure skips the frame), else propagated to a completion
// callback with an error flag.
var (
	// ErrAllocFailed means the backend could not allocate memory
	// for a resource. Compile (and so Execute) returns it when a
	// transient resource cannot be materialized, and no command
	// buffer is submitted for that frame; the uploader returns it
	// when its staging buffer cannot grow. The resource's handle
	// is left as it was: it is not replaced by Invalid.
	ErrAllocFailed = errors.New("fgraph: backend resource allocation failed")

	// ErrSubmitFailed means GPU.Commit reported a failed work
	// item; it wraps the backend's error and is surfaced through
	// the completion callbacks of the frame whose command buffer
	// failed, never through a panic.
	ErrSubmitFailed = errors.New("fgraph: command buffer submission failed")

	// ErrNotMaterialized names the not-yet-materialized state,
	// which is not itself an error condition — a resource that is
	// not yet materialized just defers the action against it.
	// WithDeferredSlice returns nil both when it runs the action
	// and when it defers it; no function of this package returns
	// ErrNotMaterialized.
	ErrNotMaterialized = errors.New("fgraph: resource not yet materialized")
)

// fatalf panics with a stack-annotated error, for the
// programmer-error class: handle decoded to unknown type,
// persistent resource without usage hint, out-of-range slice,
// double-dispose. pkg/errors.WithStack captures a trace in the
// panic value itself, which is otherwise lost once a plain
// panic unwinds past the point where the invariant was checked.
func fatalf(format string, args ...any) {
	panic(pkgerrors.WithStack(pkgerrors.Errorf(format, args...)))
}

// wrapBackendErr annotates a backend-reported error with a
// stack trace at the point the executor observed it, so a
// completion callback gets more than a bare error string.
func wrapBackendErr(err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(err)
}
