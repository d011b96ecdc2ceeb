package workflow

import "errors"

// Domain errors for the workflow package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, workflow.ErrInvalidWorkflow) {
//	    // the workflow was skipped
//	}
var (
	// ErrInvalidWorkflow is returned when a workflow fails validation.
	// The wrapped message lists every problem found.
	ErrInvalidWorkflow = errors.New("workflow: invalid")

	// ErrMergeType is returned when a stencil and a workflow disagree on
	// the kind of value stored under the same key.
	ErrMergeType = errors.New("workflow: merge type mismatch")

	// ErrUnknownStencil is returned when a workflow names a stencil that
	// is not defined.
	ErrUnknownStencil = errors.New("workflow: unknown stencil")

	// ErrInvalidTime is returned when a schedule time is not HH:MM[:SS].
	ErrInvalidTime = errors.New("workflow: invalid time of day")
)
