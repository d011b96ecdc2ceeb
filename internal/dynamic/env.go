package dynamic

import (
	"github.com/nerrad567/gray-logic-react/internal/state"
)

// Provenance records where a tracked or rendered value came from.
type Provenance string

const (
	// Default means the attribute was absent and the default was used.
	Default Provenance = "default"
	// Literal means the configured value was used as-is.
	Literal Provenance = "value"
	// Template means the value was rendered from a template.
	Template Provenance = "template"
	// Source means the value is a composite built from child values.
	Source Provenance = "source"
)

// Renderer evaluates template strings.
type Renderer interface {
	Render(tpl string, vars map[string]any) (any, error)
}

// Watcher delivers entity change notifications.
type Watcher interface {
	Watch(entities []string, all bool, fn state.WatchFunc) (cancel func())
}

// Logger defines the logging interface used by trackers and jitters.
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

// Env bundles the services trackers and jitters render against.
// Watcher may be nil, in which case template trackers never refresh on
// their own.
type Env struct {
	Renderer Renderer
	Watcher  Watcher
	Logger   Logger
}

func (e *Env) logger() Logger {
	if e == nil || e.Logger == nil {
		return noopLogger{}
	}
	return e.Logger
}

// DataFunc supplies template variables at render time.
type DataFunc func() map[string]any

func (f DataFunc) data() map[string]any {
	if f == nil {
		return nil
	}
	return f()
}
