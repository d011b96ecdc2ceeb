package dynamic

import (
	"fmt"
	"reflect"

	"github.com/nerrad567/gray-logic-react/internal/templating"
	"github.com/nerrad567/gray-logic-react/internal/values"
)

type trackerKind int

const (
	kindStatic trackerKind = iota
	kindTemplate
	kindMap
	kindList
)

type subscriber struct {
	fn     func()
	active bool
}

// Tracker holds one configuration attribute whose value may be a live
// template. Template trackers re-render when an entity they read changes
// or when an upstream tracker they depend on updates, and then notify
// their subscribers. Maps and lists become composite trackers with one
// child per element.
//
// A Tracker is not safe for concurrent use; it belongs to the event loop
// that delivers state changes.
type Tracker struct {
	env   *Env
	name  string
	raw   any
	def   any
	data  DataFunc
	kind  trackerKind
	value any
	prov  Provenance
	err   error
	deps  templating.Deps

	keys     []string
	children []*Tracker

	subs     []*subscriber
	cancels  []func()
	busy     bool
	batching bool
	dirty    bool
	closed   bool
}

// NewTracker builds a tracker for raw, falling back to def when raw is nil.
// name is used in log messages only.
func NewTracker(env *Env, name string, raw, def any, data DataFunc) *Tracker {
	t := &Tracker{
		env:  env,
		name: name,
		raw:  raw,
		def:  def,
		data: data,
	}

	switch v := raw.(type) {
	case nil:
		t.kind = kindStatic
		t.value = values.Copy(def)
		t.prov = Default
	case string:
		if !templating.IsTemplate(v) {
			t.kind = kindStatic
			t.value = v
			t.prov = Literal
			break
		}
		t.kind = kindTemplate
		t.prov = Template
		t.initTemplate(v)
	case map[string]any:
		t.kind = kindMap
		t.prov = Source
		t.keys = values.SortedKeys(v)
		for _, k := range t.keys {
			t.adopt(NewTracker(env, name+"."+k, v[k], nil, data))
		}
		t.value = t.compose()
	case []any:
		t.kind = kindList
		t.prov = Source
		for i, item := range v {
			t.adopt(NewTracker(env, fmt.Sprintf("%s[%d]", name, i), item, nil, data))
		}
		t.value = t.compose()
	default:
		t.kind = kindStatic
		t.value = v
		t.prov = Literal
	}
	return t
}

func (t *Tracker) initTemplate(tpl string) {
	deps, err := templating.Dependencies(tpl)
	if err != nil {
		t.env.logger().Warn("template dependency scan failed", "attribute", t.name, "error", err)
	}
	t.deps = deps

	t.value = values.Copy(t.def)
	t.render()

	if t.env != nil && t.env.Watcher != nil && (len(deps.Entities) > 0 || deps.AllEntities) {
		cancel := t.env.Watcher.Watch(deps.Entities, deps.AllEntities, func(string) { t.Refresh() })
		t.cancels = append(t.cancels, cancel)
	}
}

// render evaluates the template and stores the result. A render error
// keeps the previous value.
func (t *Tracker) render() bool {
	if t.env == nil || t.env.Renderer == nil {
		return false
	}
	out, err := t.env.Renderer.Render(t.raw.(string), t.data.data())
	t.err = err
	if err != nil {
		t.env.logger().Warn("template render failed, keeping previous value",
			"attribute", t.name, "error", err)
		return false
	}
	if reflect.DeepEqual(out, t.value) {
		return false
	}
	t.value = out
	return true
}

func (t *Tracker) adopt(child *Tracker) {
	t.children = append(t.children, child)
	child.OnUpdate(func() {
		if t.batching {
			t.dirty = true
			return
		}
		t.value = t.compose()
		t.notify()
	})
}

func (t *Tracker) compose() any {
	switch t.kind {
	case kindMap:
		out := make(map[string]any, len(t.keys))
		for i, k := range t.keys {
			out[k] = values.Copy(t.children[i].value)
		}
		return out
	case kindList:
		out := make([]any, len(t.children))
		for i, c := range t.children {
			out[i] = values.Copy(c.value)
		}
		return out
	}
	return t.value
}

// Value returns a copy of the current value.
func (t *Tracker) Value() any {
	return values.Copy(t.value)
}

// Provenance reports how the value was produced.
func (t *Tracker) Provenance() Provenance {
	return t.prov
}

// Err returns the error from the most recent render, if any.
func (t *Tracker) Err() error {
	return t.err
}

// Names returns the variable names the tracker's templates read.
func (t *Tracker) Names() []string {
	seen := map[string]bool{}
	var out []string
	t.walk(func(n *Tracker) {
		for _, name := range n.deps.Names {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	})
	return out
}

func (t *Tracker) walk(fn func(*Tracker)) {
	fn(t)
	for _, c := range t.children {
		c.walk(fn)
	}
}

// IsStatic reports whether the tracker can never change.
func (t *Tracker) IsStatic() bool {
	static := true
	t.walk(func(n *Tracker) {
		if n.kind == kindTemplate {
			static = false
		}
	})
	return static
}

// OnUpdate registers fn to be called after the value changes.
// Subscribers are called in registration order.
func (t *Tracker) OnUpdate(fn func()) (cancel func()) {
	s := &subscriber{fn: fn, active: true}
	t.subs = append(t.subs, s)
	return func() {
		s.active = false
		for i, cur := range t.subs {
			if cur == s {
				t.subs = append(t.subs[:i], t.subs[i+1:]...)
				return
			}
		}
	}
}

// DependsOn refreshes t whenever up updates.
func (t *Tracker) DependsOn(up *Tracker) {
	t.cancels = append(t.cancels, up.OnUpdate(func() { t.Refresh() }))
}

// Refresh re-renders the tracker and reports whether the value changed.
// Subscribers are notified once per change. A refresh that re-enters the
// same tracker through a dependency cycle is ignored.
func (t *Tracker) Refresh() bool {
	if t.closed || t.busy {
		return false
	}
	t.busy = true
	defer func() { t.busy = false }()

	switch t.kind {
	case kindTemplate:
		if t.render() {
			t.notify()
			return true
		}
	case kindMap, kindList:
		t.batching = true
		t.dirty = false
		for _, c := range t.children {
			c.Refresh()
		}
		t.batching = false
		if t.dirty {
			t.value = t.compose()
			t.notify()
			return true
		}
	}
	return false
}

func (t *Tracker) notify() {
	subs := append([]*subscriber(nil), t.subs...)
	for _, s := range subs {
		if s.active && !t.closed {
			s.fn()
		}
	}
}

// Close releases state watches and upstream subscriptions, recursively.
func (t *Tracker) Close() {
	if t.closed {
		return
	}
	t.closed = true
	for _, cancel := range t.cancels {
		cancel()
	}
	t.cancels = nil
	t.subs = nil
	for _, c := range t.children {
		c.Close()
	}
}
