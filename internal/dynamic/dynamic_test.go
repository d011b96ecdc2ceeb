package dynamic

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nerrad567/gray-logic-react/internal/state"
	"github.com/nerrad567/gray-logic-react/internal/templating"
)

// ─── Helpers ────────────────────────────────────────────────────────────

func setupEnv(t *testing.T) (*Env, *state.Store) {
	t.Helper()
	store := state.NewStore()
	return &Env{
		Renderer: templating.NewEngine(store),
		Watcher:  store,
	}, store
}

type failingRenderer struct{}

func (failingRenderer) Render(string, map[string]any) (any, error) {
	return nil, errors.New("boom")
}

// ─── Tracker ────────────────────────────────────────────────────────────

func TestTracker_StaticValues(t *testing.T) {
	env, _ := setupEnv(t)

	tests := []struct {
		name string
		raw  any
		def  any
		want any
		prov Provenance
	}{
		{"absent uses default", nil, true, true, Default},
		{"literal string", "light1", nil, "light1", Literal},
		{"literal bool", false, true, false, Literal},
		{"literal number", 42, nil, 42, Literal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(env, "attr", tt.raw, tt.def, nil)
			defer tr.Close()
			if got := tr.Value(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Value() = %v, want %v", got, tt.want)
			}
			if tr.Provenance() != tt.prov {
				t.Errorf("Provenance() = %q, want %q", tr.Provenance(), tt.prov)
			}
			if !tr.IsStatic() {
				t.Error("IsStatic() = false for non-template value")
			}
		})
	}
}

func TestTracker_TemplateFollowsState(t *testing.T) {
	env, store := setupEnv(t)
	store.Set("sensor.temp", 20, nil)

	tr := NewTracker(env, "condition", "{{ states['sensor.temp'] > 25 }}", nil, nil)
	defer tr.Close()

	if tr.Value() != false || tr.Provenance() != Template {
		t.Fatalf("initial = (%v, %q), want (false, template)", tr.Value(), tr.Provenance())
	}

	updates := 0
	tr.OnUpdate(func() { updates++ })

	store.Set("sensor.temp", 30, nil)
	if tr.Value() != true {
		t.Errorf("Value() after state change = %v, want true", tr.Value())
	}
	store.Set("sensor.temp", 31, nil)
	if updates != 1 {
		t.Errorf("updates = %d, want 1 (second change keeps value true)", updates)
	}

	tr.Close()
	store.Set("sensor.temp", 10, nil)
	if tr.Value() != true {
		t.Error("closed tracker kept refreshing")
	}
	if store.WatchCount() != 0 {
		t.Errorf("WatchCount() = %d after Close, want 0", store.WatchCount())
	}
}

func TestTracker_RenderErrorKeepsPrevious(t *testing.T) {
	env := &Env{Renderer: failingRenderer{}}

	tr := NewTracker(env, "condition", "{{ broken }}", true, nil)
	if tr.Value() != true {
		t.Errorf("Value() = %v, want default true after render error", tr.Value())
	}
	if tr.Err() == nil {
		t.Error("Err() = nil, want render error")
	}
	if tr.Refresh() {
		t.Error("Refresh() reported a change after a failed render")
	}
}

func TestTracker_Composite(t *testing.T) {
	env, store := setupEnv(t)
	store.Set("light1", "off", nil)

	raw := map[string]any{
		"fixed": 1,
		"live":  "{{ states.light1 }}",
		"list":  []any{"a", "{{ states.light1 == 'on' }}"},
	}
	tr := NewTracker(env, "data", raw, nil, nil)
	defer tr.Close()

	if tr.Provenance() != Source {
		t.Errorf("Provenance() = %q, want source", tr.Provenance())
	}
	if tr.IsStatic() {
		t.Error("IsStatic() = true for composite holding templates")
	}

	updates := 0
	tr.OnUpdate(func() { updates++ })
	store.Set("light1", "on", nil)

	want := map[string]any{
		"fixed": 1,
		"live":  "on",
		"list":  []any{"a", true},
	}
	if got := tr.Value(); !reflect.DeepEqual(got, want) {
		t.Errorf("Value() = %#v, want %#v", got, want)
	}
	// Two children read light1; each notifies the parent separately.
	if updates == 0 {
		t.Error("composite did not propagate child update")
	}

	updates = 0
	if tr.Refresh() || updates != 0 {
		t.Error("Refresh() with no underlying change should not notify")
	}
}

func TestTracker_OnUpdateCancel(t *testing.T) {
	env, store := setupEnv(t)
	tr := NewTracker(env, "x", "{{ states.a }}", nil, nil)
	defer tr.Close()

	var order []int
	cancel := tr.OnUpdate(func() { order = append(order, 1) })
	tr.OnUpdate(func() { order = append(order, 2) })

	store.Set("a", "1", nil)
	cancel()
	store.Set("a", "2", nil)

	if !reflect.DeepEqual(order, []int{1, 2, 2}) {
		t.Errorf("order = %v, want [1 2 2]", order)
	}
}

// ─── Bag ────────────────────────────────────────────────────────────────

func TestBag_VariablesReadEachOther(t *testing.T) {
	env, store := setupEnv(t)
	store.Set("counter", 1, nil)

	// "a_total" sorts before "base" so its first render sees no base.
	bag := NewBag(env, map[string]any{
		"a_total": "{{ base + 10 }}",
		"base":    "{{ states.counter * 2 }}",
		"label":   "kitchen",
	}, nil)
	defer bag.Close()

	want := map[string]any{"a_total": 12, "base": 2, "label": "kitchen"}
	if got := bag.Values(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Values() = %#v, want %#v", got, want)
	}

	store.Set("counter", 5, nil)
	if got := bag.Values()["a_total"]; got != 20 {
		t.Errorf("a_total after counter change = %v, want 20", got)
	}

	if got := bag.Provenance()["label"]; got != Literal {
		t.Errorf("label provenance = %q, want value", got)
	}
	if !reflect.DeepEqual(bag.Names(), []string{"a_total", "base", "label"}) {
		t.Errorf("Names() = %v", bag.Names())
	}
}

func TestBag_CycleDoesNotRecurse(t *testing.T) {
	env, _ := setupEnv(t)
	bag := NewBag(env, map[string]any{
		"a": "{{ b }}",
		"b": "{{ a }}",
	}, nil)
	defer bag.Close()

	if _, ok := bag.Get("a"); !ok {
		t.Fatal("Get(a) missing")
	}
}

func TestBag_ExtraData(t *testing.T) {
	env, _ := setupEnv(t)
	bag := NewBag(env, map[string]any{"greeting": "hello {{ who }}"},
		func() map[string]any { return map[string]any{"who": "world"} })
	defer bag.Close()

	if got := bag.Values()["greeting"]; got != "hello world" {
		t.Errorf("greeting = %v, want %q", got, "hello world")
	}
}

// ─── Jitter ─────────────────────────────────────────────────────────────

func TestRender(t *testing.T) {
	env, store := setupEnv(t)
	store.Set("light1", "on", nil)

	data := map[string]any{
		"event": map[string]any{"entity": "switch1", "action": "toggle"},
	}

	tests := []struct {
		name string
		raw  any
		def  any
		want any
		prov Provenance
	}{
		{"absent", nil, "x", "x", Default},
		{"literal", "on", nil, "on", Literal},
		{"event template", "{{ event.entity }}", nil, "switch1", Template},
		{"state template", "{{ is_state('light1', 'on') }}", nil, true, Template},
		{
			"composite",
			map[string]any{"target": "{{ event.entity }}", "level": 3},
			nil,
			map[string]any{"target": "switch1", "level": 3},
			Source,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Render(env, "attr", tt.raw, tt.def, data)
			if r.Err != nil {
				t.Fatalf("Render: %v", r.Err)
			}
			if !reflect.DeepEqual(r.Value, tt.want) {
				t.Errorf("Value = %#v, want %#v", r.Value, tt.want)
			}
			if r.Provenance != tt.prov {
				t.Errorf("Provenance = %q, want %q", r.Provenance, tt.prov)
			}
		})
	}
}

func TestRender_ErrorFallsBackToDefault(t *testing.T) {
	env := &Env{Renderer: failingRenderer{}}
	r := Render(env, "attr", "{{ x }}", "fallback", nil)
	if r.Err == nil || r.Value != "fallback" || r.Provenance != Default {
		t.Errorf("Render = %+v, want default with error", r)
	}
}

func TestRenderStrings(t *testing.T) {
	env, _ := setupEnv(t)
	data := map[string]any{"event": map[string]any{"entity": "light2"}}

	got, prov := RenderStrings(env, "entity", []any{"light1", "{{ event.entity }}"}, data)
	if !reflect.DeepEqual(got, []string{"light1", "light2"}) || prov != Source {
		t.Errorf("RenderStrings = %v (%v)", got, prov)
	}
	if got, prov := RenderStrings(env, "action", nil, data); got != nil || prov != Literal {
		t.Errorf("RenderStrings(nil) = %v (%v), want nil literal", got, prov)
	}
}
