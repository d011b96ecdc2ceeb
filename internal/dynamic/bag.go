package dynamic

import (
	"github.com/nerrad567/gray-logic-react/internal/values"
)

// Bag is a set of named trackers, used for workflow variables.
// Templates in one variable may read other variables by name; such a
// variable refreshes whenever the variables it reads update.
type Bag struct {
	names    []string
	trackers map[string]*Tracker
}

// NewBag builds trackers for every entry in raw. extra supplies additional
// template variables (may be nil); bag variables take precedence.
func NewBag(env *Env, raw map[string]any, extra DataFunc) *Bag {
	b := &Bag{
		names:    values.SortedKeys(raw),
		trackers: make(map[string]*Tracker, len(raw)),
	}

	data := func() map[string]any {
		out := values.CopyMap(extra.data())
		if out == nil {
			out = make(map[string]any, len(b.trackers))
		}
		for name, t := range b.trackers {
			out[name] = t.Value()
		}
		return out
	}

	for _, name := range b.names {
		b.trackers[name] = NewTracker(env, name, raw[name], nil, data)
	}

	for _, name := range b.names {
		t := b.trackers[name]
		for _, dep := range t.Names() {
			if up, ok := b.trackers[dep]; ok && dep != name {
				t.DependsOn(up)
			}
		}
	}

	// Variables were built in name order, so a variable that reads one
	// built after it rendered against a missing value. Refresh until the
	// values settle; each pass resolves at least one more level.
	for range b.names {
		changed := false
		for _, name := range b.names {
			if b.trackers[name].Refresh() {
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return b
}

// Names returns the variable names in sorted order.
func (b *Bag) Names() []string {
	return append([]string(nil), b.names...)
}

// Get returns the tracker for name.
func (b *Bag) Get(name string) (*Tracker, bool) {
	t, ok := b.trackers[name]
	return t, ok
}

// Values returns a copy of every current variable value.
func (b *Bag) Values() map[string]any {
	out := make(map[string]any, len(b.trackers))
	for name, t := range b.trackers {
		out[name] = t.Value()
	}
	return out
}

// Provenance returns the provenance of every variable.
func (b *Bag) Provenance() map[string]Provenance {
	out := make(map[string]Provenance, len(b.trackers))
	for name, t := range b.trackers {
		out[name] = t.Provenance()
	}
	return out
}

// Close closes every tracker in the bag.
func (b *Bag) Close() {
	for _, t := range b.trackers {
		t.Close()
	}
}
