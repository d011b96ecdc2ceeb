package workflow

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const workflowsYAML = `
stencils:
  base:
    mode: parallel
    variables:
      brightness: 80
    reactor:
      - id: on
        type: light
        action: on
workflows:
  hallway:
    stencil: base
    mode: single
    actor:
      entity: motion.hallway
      type: binary_sensor
      action: "on"
    reactor:
      - id: on
        entity: light.hallway
  broken:
    actor:
      - entity: a
        type: t
    reactor:
      - entity: b
        type: t
        wait:
          delay: { minutes: 1 }
          schedule: { at: "10:00" }
  empty_delay:
    actor: { entity: a, type: t }
    reactor: { entity: b, type: t, wait: { delay: {} } }
  missing:
    stencil: nope
    actor: { entity: a, type: t }
    reactor: { entity: b, type: t }
`

func TestLoad(t *testing.T) {
	res, err := Load([]byte(workflowsYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(res.Workflows) != 1 || res.Workflows[0].ID != "hallway" {
		t.Fatalf("Workflows = %+v, want only hallway", res.Workflows)
	}

	w := res.Workflows[0]
	if w.Mode != ModeSingle {
		t.Errorf("Mode = %q, want single (workflow overrides stencil)", w.Mode)
	}
	if w.Variables["brightness"] != 80 {
		t.Errorf("Variables = %v, want brightness from stencil", w.Variables)
	}
	if len(w.Reactors) != 1 {
		t.Fatalf("Reactors = %+v, want one merged reactor", w.Reactors)
	}
	r := w.Reactors[0]
	if r.ID != "on" || r.Entity != "light.hallway" || r.Type != "light" || r.Action != "on" {
		t.Errorf("merged reactor = %+v", r)
	}

	if got := strings.Join(res.Errors["broken"], "; "); !strings.Contains(got, "delay and schedule cannot both be set") {
		t.Errorf("broken errors = %q", got)
	}
	if got := strings.Join(res.Errors["empty_delay"], "; "); !strings.Contains(got, "delay needs at least one of") {
		t.Errorf("empty_delay errors = %q", got)
	}
	if got := strings.Join(res.Errors["missing"], "; "); !strings.Contains(got, ErrUnknownStencil.Error()) {
		t.Errorf("missing errors = %q", got)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflows.yaml")
	if err := os.WriteFile(path, []byte(workflowsYAML), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	res, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(res.Workflows) != 1 {
		t.Errorf("len(Workflows) = %d, want 1", len(res.Workflows))
	}

	if _, err := LoadFile(filepath.Join(dir, "absent.yaml")); err == nil {
		t.Error("LoadFile of missing file should fail")
	}
	if _, err := Load([]byte("workflows: [")); err == nil {
		t.Error("Load of malformed YAML should fail")
	}
}

// Stencil mode parallel, workflow mode single: the workflow wins.
func TestResolve_WorkflowOverridesStencilMode(t *testing.T) {
	raw, err := Resolve(
		map[string]any{"stencil": "s", "mode": "single"},
		map[string]map[string]any{"s": {"mode": "parallel"}},
	)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	w, _ := Parse("wf", raw)
	if w.Mode != ModeSingle {
		t.Errorf("Mode = %q, want single", w.Mode)
	}
}

func TestValidate(t *testing.T) {
	valid := &Workflow{
		ID:       "wf",
		Mode:     ModeQueued,
		Actors:   []Actor{{ID: "a", Entity: "x", Type: "t"}},
		Reactors: []Reactor{{ID: "r", ResetWorkflow: "other"}},
	}
	if err := Validate(valid); err != nil {
		t.Errorf("Validate(valid) = %v", err)
	}

	tests := []struct {
		name string
		mod  func(w *Workflow)
		want string
	}{
		{"no actors", func(w *Workflow) { w.Actors = nil }, "at least one actor"},
		{"no reactors", func(w *Workflow) { w.Reactors = nil }, "at least one reactor"},
		{"bad mode", func(w *Workflow) { w.Mode = "sometimes" }, "mode: must be one of"},
		{"actor without entity", func(w *Workflow) { w.Actors[0].Entity = nil }, "entity is required"},
		{"reactor without type", func(w *Workflow) {
			w.Reactors[0] = Reactor{ID: "r", Entity: "x"}
		}, "type is required"},
		{"bad restart mode", func(w *Workflow) {
			w.Reactors[0].Wait = &Wait{Delay: &Delay{Seconds: 1, RestartMode: "later"}}
		}, "restart_mode: must be one of"},
		{"state with delay", func(w *Workflow) {
			w.Reactors[0].Wait = &Wait{
				State: &StateWait{Condition: true, RestartMode: RestartAbort},
				Delay: &Delay{Seconds: 1, RestartMode: RestartAbort},
			}
		}, "only one of state, delay or schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := valid.DeepCopy()
			tt.mod(w)
			err := Validate(w)
			if !errors.Is(err, ErrInvalidWorkflow) {
				t.Fatalf("Validate() = %v, want ErrInvalidWorkflow", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestWorkflow_DeepCopy(t *testing.T) {
	w := &Workflow{
		ID:        "wf",
		Variables: map[string]any{"a": map[string]any{"b": 1}},
		Reactors: []Reactor{{
			ID:   "r",
			Data: map[string]any{"k": "v"},
			Wait: &Wait{Schedule: &Schedule{Weekdays: nil}},
		}},
	}
	cpy := w.DeepCopy()
	cpy.Variables["a"].(map[string]any)["b"] = 2
	cpy.Reactors[0].Data.(map[string]any)["k"] = "changed"
	cpy.Reactors[0].Wait.Schedule.At.Hour = 5

	if w.Variables["a"].(map[string]any)["b"] != 1 ||
		w.Reactors[0].Data.(map[string]any)["k"] != "v" ||
		w.Reactors[0].Wait.Schedule.At.Hour != 0 {
		t.Error("DeepCopy shares state with the original")
	}
}
