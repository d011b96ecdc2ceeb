package templating

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Names injected into every evaluation environment.
const (
	envStates    = "states"
	envIsState   = "is_state"
	envStateAttr = "state_attr"
)

// StateReader exposes entity state to templates.
type StateReader interface {
	State(entity string) (any, bool)
	States() map[string]any
	Attributes(entity string) map[string]any
}

// Engine renders templates whose {{ }} blocks are expr-lang expressions.
//
// A template that is exactly one block renders to the block's native
// value, so "{{ states.counter + 1 }}" yields an int. Mixed text renders
// each block with fmt.Sprint and returns the concatenated string.
//
// Thread-safe: compiled programs are cached per expression.
type Engine struct {
	states StateReader

	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewEngine creates an Engine reading entity state from states (may be nil).
func NewEngine(states StateReader) *Engine {
	return &Engine{
		states: states,
		cache:  make(map[string]*vm.Program),
	}
}

// Render evaluates tpl against vars. Non-template strings are returned unchanged.
func (e *Engine) Render(tpl string, vars map[string]any) (any, error) {
	if !IsTemplate(tpl) {
		return tpl, nil
	}

	segs, err := split(tpl)
	if err != nil {
		return nil, err
	}

	env := e.environment(vars)
	if len(segs) == 1 && segs[0].isExpr {
		return e.eval(segs[0].text, env)
	}

	var sb strings.Builder
	for _, s := range segs {
		if !s.isExpr {
			sb.WriteString(s.text)
			continue
		}
		v, err := e.eval(s.text, env)
		if err != nil {
			return nil, err
		}
		if v != nil {
			sb.WriteString(fmt.Sprint(v))
		}
	}
	return sb.String(), nil
}

func (e *Engine) eval(expression string, env map[string]any) (any, error) {
	prg, err := e.program(expression)
	if err != nil {
		return nil, err
	}
	out, err := vm.Run(prg, env)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrRender, expression, err)
	}
	return out, nil
}

// program returns a cached compiled program or compiles and caches a new one.
// Programs are compiled without a typed environment because variable
// types change between evaluations.
func (e *Engine) program(expression string) (*vm.Program, error) {
	e.mu.RLock()
	prg, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if prg, ok := e.cache[expression]; ok {
		return prg, nil
	}

	prg, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrCompile, expression, err)
	}
	e.cache[expression] = prg
	return prg, nil
}

// environment builds the evaluation env: caller variables plus the state helpers.
// Helpers shadow variables of the same name.
func (e *Engine) environment(vars map[string]any) map[string]any {
	env := make(map[string]any, len(vars)+3)
	for k, v := range vars {
		env[k] = v
	}

	states := map[string]any{}
	if e.states != nil {
		states = e.states.States()
	}
	env[envStates] = states
	env[envIsState] = func(entity string, value any) bool {
		v, ok := states[entity]
		return ok && fmt.Sprint(v) == fmt.Sprint(value)
	}
	env[envStateAttr] = func(entity, attr string) any {
		if e.states == nil {
			return nil
		}
		return e.states.Attributes(entity)[attr]
	}
	return env
}
