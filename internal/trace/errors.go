package trace

import "errors"

// ErrTraceNotFound is returned when no trace exists for a run id.
var ErrTraceNotFound = errors.New("trace: not found")
