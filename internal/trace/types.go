package trace

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-react/internal/values"
)

// PathParallel marks a run that started more than one reactor.
const PathParallel = "parallel"

// ActorPath returns the node path of an actor check.
func ActorPath(index int) string {
	return fmt.Sprintf("actor/%d", index)
}

// ReactorPath returns the node path of a reactor step such as
// "condition", "wait", "dispatch" or "reset".
func ReactorPath(index int, step string) string {
	return fmt.Sprintf("reactor/%d/%s", index, step)
}

// Run states recorded on a trace.
const (
	StateRunning  = "running"
	StateFinished = "finished"
)

// Node is one step of a run: an actor check, a reactor condition, a
// wait, a dispatch or a reset.
type Node struct {
	Path      string         `json:"path"`
	Timestamp time.Time      `json:"timestamp"`
	Variables map[string]any `json:"variables,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Trace is the execution record of a single workflow run.
//
// A Trace is written only by the goroutine driving its run. Readers get
// copies through Clone or the Store.
type Trace struct {
	RunID      string         `json:"run_id"`
	WorkflowID string         `json:"workflow_id"`
	Context    string         `json:"context,omitempty"`
	State      string         `json:"state"`
	Start      time.Time      `json:"start"`
	Finish     *time.Time     `json:"finish,omitempty"`
	Variables  map[string]any `json:"variables,omitempty"`
	Nodes      []Node         `json:"nodes"`
}

// New starts a trace seeded with the run's input variables.
func New(runID, workflowID, contextID string, start time.Time, vars map[string]any) *Trace {
	return &Trace{
		RunID:      runID,
		WorkflowID: workflowID,
		Context:    contextID,
		State:      StateRunning,
		Start:      start.UTC(),
		Variables:  values.CopyMap(vars),
		Nodes:      []Node{},
	}
}

// Add appends a node. Maps are copied.
func (t *Trace) Add(n Node) {
	n.Timestamp = n.Timestamp.UTC()
	n.Variables = values.CopyMap(n.Variables)
	n.Result = values.CopyMap(n.Result)
	t.Nodes = append(t.Nodes, n)
}

// Done marks the trace finished. Later calls are ignored.
func (t *Trace) Done(at time.Time) {
	if t.Finish != nil {
		return
	}
	f := at.UTC()
	t.Finish = &f
	t.State = StateFinished
}

// Duration returns the run time so far, or the total once finished.
func (t *Trace) Duration(now time.Time) time.Duration {
	if t.Finish != nil {
		return t.Finish.Sub(t.Start)
	}
	return now.Sub(t.Start)
}

// Clone returns a deep copy.
func (t *Trace) Clone() *Trace {
	if t == nil {
		return nil
	}
	cpy := *t
	if t.Finish != nil {
		f := *t.Finish
		cpy.Finish = &f
	}
	cpy.Variables = values.CopyMap(t.Variables)
	cpy.Nodes = make([]Node, len(t.Nodes))
	for i, n := range t.Nodes {
		n.Variables = values.CopyMap(n.Variables)
		n.Result = values.CopyMap(n.Result)
		cpy.Nodes[i] = n
	}
	return &cpy
}
