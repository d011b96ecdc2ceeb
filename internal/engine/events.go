package engine

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-react/internal/values"
)

// ActionEvent is an inbound action that may trigger workflows.
type ActionEvent struct {
	Entity  string         `json:"entity"`
	Type    string         `json:"type"`
	Action  string         `json:"action"`
	Data    map[string]any `json:"data,omitempty"`
	Context string         `json:"context,omitempty"`
}

// templateData is how the event appears to templates as "event".
func (e ActionEvent) templateData() map[string]any {
	return map[string]any{
		"entity":  e.Entity,
		"type":    e.Type,
		"action":  e.Action,
		"data":    values.CopyMap(e.Data),
		"context": e.Context,
	}
}

// ReactionEvent is emitted when a reaction dispatches.
type ReactionEvent struct {
	WorkflowID string         `json:"workflow_id"`
	RunID      string         `json:"run_id"`
	ReactionID string         `json:"reaction_id"`
	ReactorID  string         `json:"reactor_id"`
	Entity     string         `json:"entity"`
	Type       string         `json:"type"`
	Action     string         `json:"action,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Context    string         `json:"context,omitempty"`
}

// Dispatcher delivers engine output. Calls are made on the engine's
// goroutine with the context of the triggering call chain; an
// implementation that feeds events back into the engine must do so
// synchronously with that context so recursion is detected.
type Dispatcher interface {
	DispatchReaction(ctx context.Context, ev ReactionEvent) error
	ResetWorkflow(ctx context.Context, workflowID string) error
}

// Timer calls fn at a wall-clock time on the engine's goroutine.
type Timer interface {
	At(when time.Time, fn func()) (cancel func())
}

// Logger defines the logging interface used by the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopDispatcher struct{}

func (noopDispatcher) DispatchReaction(context.Context, ReactionEvent) error { return nil }
func (noopDispatcher) ResetWorkflow(context.Context, string) error           { return nil }
