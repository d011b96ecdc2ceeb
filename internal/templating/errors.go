package templating

import "errors"

// Domain-specific errors for template evaluation.
var (
	// ErrUnclosedTemplate is returned when a {{ or {# block has no closing delimiter.
	ErrUnclosedTemplate = errors.New("templating: unclosed template block")

	// ErrUnsupportedBlock is returned for {% statement %} blocks.
	ErrUnsupportedBlock = errors.New("templating: statement blocks are not supported")

	// ErrCompile is returned when an expression cannot be compiled.
	ErrCompile = errors.New("templating: compile failed")

	// ErrRender is returned when a compiled expression fails at run time.
	ErrRender = errors.New("templating: render failed")
)
