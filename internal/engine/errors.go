package engine

import "errors"

// Domain errors for the engine package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, engine.ErrRunNotFound) {
//	    // the run already finished
//	}
var (
	// ErrWorkflowNotFound is returned when a workflow id is not loaded.
	ErrWorkflowNotFound = errors.New("engine: workflow not found")

	// ErrRunNotFound is returned when a run id is not registered.
	ErrRunNotFound = errors.New("engine: run not found")

	// ErrReactionNotFound is returned when a reaction id is not registered.
	ErrReactionNotFound = errors.New("engine: reaction not found")

	// ErrInvalidResume is returned when a reaction is resumed while it is
	// not waiting. It indicates an engine bug rather than a user error.
	ErrInvalidResume = errors.New("engine: invalid resume")

	// ErrConditionFailed ends a run early when the actor condition is
	// false. It is control flow, never reported as a failure.
	ErrConditionFailed = errors.New("engine: condition failed")

	// ErrScheduleUnreachable is returned when no day in the next week
	// matches a schedule's weekdays.
	ErrScheduleUnreachable = errors.New("engine: schedule weekday never matches")

	// ErrRecursion is returned when a run is skipped because its workflow
	// is already on the current call chain, or the chain is too deep.
	ErrRecursion = errors.New("engine: recursive trigger skipped")

	// ErrIDExhausted is returned when no unique id could be generated.
	ErrIDExhausted = errors.New("engine: could not generate unique id")
)
