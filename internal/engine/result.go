package engine

// StepResult is the state of a reaction.
//
//	NONE ──► YIELD_STATE | YIELD_DELAY | YIELD_SCHEDULE ──► SUCCESS | FAIL | STOP
//
// Yield results mean the reaction is suspended waiting on a timer or a
// template watch. Done results are terminal.
type StepResult int

const (
	ResultNone StepResult = iota
	ResultYieldState
	ResultYieldDelay
	ResultYieldSchedule
	ResultSuccess
	ResultFail
	ResultStop
)

var resultNames = map[StepResult]string{
	ResultNone:          "none",
	ResultYieldState:    "yield_state",
	ResultYieldDelay:    "yield_delay",
	ResultYieldSchedule: "yield_schedule",
	ResultSuccess:       "success",
	ResultFail:          "fail",
	ResultStop:          "stop",
}

// String returns the lowercase name of the result.
func (r StepResult) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the result by name.
func (r StepResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// IsYield reports whether the reaction is suspended.
func (r StepResult) IsYield() bool {
	return r == ResultYieldState || r == ResultYieldDelay || r == ResultYieldSchedule
}

// IsDone reports whether the result is terminal.
func (r StepResult) IsDone() bool {
	return r == ResultSuccess || r == ResultFail || r == ResultStop
}
