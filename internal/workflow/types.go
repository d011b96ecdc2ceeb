package workflow

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-react/internal/values"
)

// Mode is the concurrency policy applied when a workflow is triggered
// while earlier runs are still active.
type Mode string

const (
	// ModeParallel starts an independent run for every trigger.
	ModeParallel Mode = "parallel"
	// ModeSingle ignores triggers while a run is active.
	ModeSingle Mode = "single"
	// ModeQueued runs triggers one at a time in arrival order.
	ModeQueued Mode = "queued"
	// ModeRestart stops active runs before starting the new one.
	ModeRestart Mode = "restart"
)

// RestartMode decides what happens to a waiting reaction when the
// engine shuts down.
type RestartMode string

const (
	// RestartAbort stops the reaction without dispatching.
	RestartAbort RestartMode = "abort"
	// RestartForce skips the remaining wait and dispatches immediately.
	RestartForce RestartMode = "force"
)

// Workflow is a named set of actors and reactors.
// Workflows are immutable once loaded; a reload replaces them.
type Workflow struct {
	ID        string         `json:"id" validate:"required"`
	Mode      Mode           `json:"mode" validate:"oneof=parallel single queued restart"`
	Stencil   string         `json:"stencil,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
	Actors    []Actor        `json:"actor" validate:"dive"`
	Reactors  []Reactor      `json:"reactor" validate:"dive"`
}

// Actor is a trigger definition. Entity, Type and Action accept a single
// value or a list; a nil Action matches any action. Condition is a bool
// or a template string and defaults to true.
type Actor struct {
	ID        string `json:"id" validate:"required"`
	Index     int    `json:"index"`
	Entity    any    `json:"entity"`
	Type      any    `json:"type"`
	Action    any    `json:"action,omitempty"`
	Condition any    `json:"condition,omitempty"`
}

// Reactor is a response definition executed once per run.
type Reactor struct {
	ID        string `json:"id" validate:"required"`
	Index     int    `json:"index"`
	Entity    any    `json:"entity,omitempty"`
	Type      any    `json:"type,omitempty"`
	Action    any    `json:"action,omitempty"`
	Condition any    `json:"condition,omitempty"`

	// Data is a map or a list of maps; each list entry is dispatched separately.
	Data any `json:"data,omitempty"`

	// Overwrite stops earlier reactions of the same reactor when a new one starts.
	Overwrite bool `json:"overwrite,omitempty"`

	// ResetWorkflow names a workflow whose runs are stopped instead of dispatching.
	ResetWorkflow string `json:"reset_workflow,omitempty"`

	ForwardAction bool `json:"forward_action,omitempty"`
	ForwardData   bool `json:"forward_data,omitempty"`

	Wait *Wait `json:"wait,omitempty"`
}

// Wait holds at most one of its three wait kinds.
type Wait struct {
	State    *StateWait `json:"state,omitempty"`
	Delay    *Delay     `json:"delay,omitempty"`
	Schedule *Schedule  `json:"schedule,omitempty"`
}

// RestartMode returns the restart mode of whichever wait is configured.
func (w *Wait) RestartMode() RestartMode {
	switch {
	case w == nil:
		return RestartAbort
	case w.State != nil:
		return w.State.RestartMode
	case w.Delay != nil:
		return w.Delay.RestartMode
	case w.Schedule != nil:
		return w.Schedule.RestartMode
	}
	return RestartAbort
}

// StateWait suspends a reaction until Condition renders true.
type StateWait struct {
	Condition   any         `json:"condition" validate:"required"`
	RestartMode RestartMode `json:"restart_mode" validate:"oneof=abort force"`
}

// Delay suspends a reaction for a fixed duration.
type Delay struct {
	Hours       float64     `json:"hours,omitempty" validate:"gte=0"`
	Minutes     float64     `json:"minutes,omitempty" validate:"gte=0"`
	Seconds     float64     `json:"seconds,omitempty" validate:"gte=0"`
	RestartMode RestartMode `json:"restart_mode" validate:"oneof=abort force"`
}

// IsZero reports whether no component of the delay was given.
func (d Delay) IsZero() bool {
	return d.Hours == 0 && d.Minutes == 0 && d.Seconds == 0
}

// Duration returns the total delay.
func (d Delay) Duration() time.Duration {
	secs := d.Hours*3600 + d.Minutes*60 + d.Seconds
	return time.Duration(secs * float64(time.Second))
}

// Schedule suspends a reaction until the next matching time of day.
// An empty Weekdays list matches every day.
type Schedule struct {
	At          TimeOfDay      `json:"at"`
	Weekdays    []time.Weekday `json:"weekdays,omitempty" validate:"dive,gte=0,lte=6"`
	RestartMode RestartMode    `json:"restart_mode" validate:"oneof=abort force"`
}

// TimeOfDay is a local wall-clock time.
type TimeOfDay struct {
	Hour   int `json:"hour" validate:"gte=0,lte=23"`
	Minute int `json:"minute" validate:"gte=0,lte=59"`
	Second int `json:"second" validate:"gte=0,lte=59"`
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
}

// String formats the time as HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// weekdayNames maps accepted weekday spellings to time.Weekday.
var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// DeepCopy creates an independent copy of the workflow.
func (w *Workflow) DeepCopy() *Workflow {
	if w == nil {
		return nil
	}
	cpy := *w
	cpy.Variables = values.CopyMap(w.Variables)
	cpy.Actors = make([]Actor, len(w.Actors))
	for i, a := range w.Actors {
		cpy.Actors[i] = a.deepCopy()
	}
	cpy.Reactors = make([]Reactor, len(w.Reactors))
	for i, r := range w.Reactors {
		cpy.Reactors[i] = r.deepCopy()
	}
	return &cpy
}

func (a Actor) deepCopy() Actor {
	a.Entity = values.Copy(a.Entity)
	a.Type = values.Copy(a.Type)
	a.Action = values.Copy(a.Action)
	a.Condition = values.Copy(a.Condition)
	return a
}

func (r Reactor) deepCopy() Reactor {
	r.Entity = values.Copy(r.Entity)
	r.Type = values.Copy(r.Type)
	r.Action = values.Copy(r.Action)
	r.Condition = values.Copy(r.Condition)
	r.Data = values.Copy(r.Data)
	if r.Wait != nil {
		w := *r.Wait
		if w.State != nil {
			s := *w.State
			s.Condition = values.Copy(s.Condition)
			w.State = &s
		}
		if w.Delay != nil {
			d := *w.Delay
			w.Delay = &d
		}
		if w.Schedule != nil {
			s := *w.Schedule
			s.Weekdays = append([]time.Weekday(nil), s.Weekdays...)
			w.Schedule = &s
		}
		r.Wait = &w
	}
	return r
}
