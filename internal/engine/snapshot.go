package engine

import (
	"slices"

	"github.com/nerrad567/gray-logic-react/internal/dynamic"
	"github.com/nerrad567/gray-logic-react/internal/templating"
	"github.com/nerrad567/gray-logic-react/internal/values"
	"github.com/nerrad567/gray-logic-react/internal/workflow"
)

// ActorValue is an actor's runtime value at trigger time.
type ActorValue struct {
	ID        string   `json:"id"`
	Index     int      `json:"index"`
	Entity    []string `json:"entity"`
	Type      []string `json:"type"`
	Action    []string `json:"action,omitempty"`
	Condition bool     `json:"condition"`

	ConditionProvenance dynamic.Provenance `json:"condition_provenance"`
}

func (a ActorValue) templateData() map[string]any {
	return map[string]any{
		"id":     a.ID,
		"index":  a.Index,
		"entity": stringsToAny(a.Entity),
		"type":   stringsToAny(a.Type),
		"action": stringsToAny(a.Action),
	}
}

// ReactorValue is a reactor rendered once against a triggering event.
type ReactorValue struct {
	ID            string           `json:"id"`
	Index         int              `json:"index"`
	Entity        []string         `json:"entity"`
	Type          []string         `json:"type"`
	Action        []string         `json:"action,omitempty"`
	Data          []map[string]any `json:"data,omitempty"`
	Condition     bool             `json:"condition"`
	Overwrite     bool             `json:"overwrite,omitempty"`
	ResetWorkflow string           `json:"reset_workflow,omitempty"`
	ForwardAction bool             `json:"forward_action,omitempty"`
	ForwardData   bool             `json:"forward_data,omitempty"`

	// Wait is the configured wait; a state condition is tracked live
	// once the reaction reaches it.
	Wait *workflow.Wait `json:"wait,omitempty"`

	Provenance map[string]dynamic.Provenance `json:"provenance"`
}

// Snapshot is the frozen view of a workflow at the moment one event
// triggered it. It is consumed by exactly one run and never modified.
type Snapshot struct {
	WorkflowID string                        `json:"workflow_id"`
	Variables  map[string]any                `json:"variables,omitempty"`
	Provenance map[string]dynamic.Provenance `json:"provenance,omitempty"`
	Actor      ActorValue                    `json:"actor"`
	Reactors   []ReactorValue                `json:"reactor"`
	Event      ActionEvent                   `json:"event"`

	// data is the template environment: variables at top level plus
	// "variables", "event" and "actor".
	data map[string]any
}

// TemplateData returns a copy of the variables templates see for this run.
func (s *Snapshot) TemplateData() map[string]any {
	return values.CopyMap(s.data)
}

// snapshot renders the workflow for an event matched by actor index.
func (w *WorkflowRuntime) snapshot(index int, ev ActionEvent) *Snapshot {
	actor := w.actors[index].value(w.wf.Actors[index])

	vars := w.vars.Values()
	data := values.CopyMap(vars)
	if data == nil {
		data = make(map[string]any)
	}
	data["variables"] = values.CopyMap(vars)
	data["event"] = ev.templateData()
	data["actor"] = actor.templateData()

	snap := &Snapshot{
		WorkflowID: w.wf.ID,
		Variables:  vars,
		Provenance: w.vars.Provenance(),
		Actor:      actor,
		Event:      ev,
		data:       data,
	}
	for _, r := range w.wf.Reactors {
		snap.Reactors = append(snap.Reactors, renderReactor(w.rt.env, r, data))
	}
	return snap
}

// renderReactor jitter-renders every templated reactor attribute.
func renderReactor(env *dynamic.Env, r workflow.Reactor, data map[string]any) ReactorValue {
	prov := make(map[string]dynamic.Provenance)
	render := func(name string, raw, def any) any {
		out := dynamic.Render(env, r.ID+"."+name, raw, def, data)
		prov[name] = out.Provenance
		return out.Value
	}
	strs := func(name string, raw any) []string {
		out, p := dynamic.RenderStrings(env, r.ID+"."+name, raw, data)
		prov[name] = p
		return out
	}

	v := ReactorValue{
		ID:            r.ID,
		Index:         r.Index,
		Entity:        strs("entity", r.Entity),
		Type:          strs("type", r.Type),
		Action:        strs("action", r.Action),
		Condition:     templating.Truthy(render("condition", r.Condition, true)),
		Overwrite:     r.Overwrite,
		ResetWorkflow: r.ResetWorkflow,
		ForwardAction: r.ForwardAction,
		ForwardData:   r.ForwardData,
		Wait:          r.Wait,
		Provenance:    prov,
	}

	switch d := render("data", r.Data, nil).(type) {
	case map[string]any:
		v.Data = []map[string]any{d}
	case []any:
		v.Data = values.Maps(d)
	}
	return v
}

// actorTrackers keep an actor's attributes live between events.
type actorTrackers struct {
	entity    *dynamic.Tracker
	typ       *dynamic.Tracker
	action    *dynamic.Tracker
	condition *dynamic.Tracker
}

func newActorTrackers(env *dynamic.Env, a workflow.Actor, data dynamic.DataFunc) *actorTrackers {
	prefix := a.ID + "."
	return &actorTrackers{
		entity:    dynamic.NewTracker(env, prefix+"entity", a.Entity, nil, data),
		typ:       dynamic.NewTracker(env, prefix+"type", a.Type, nil, data),
		action:    dynamic.NewTracker(env, prefix+"action", a.Action, nil, data),
		condition: dynamic.NewTracker(env, prefix+"condition", a.Condition, true, data),
	}
}

// dependOn wires each templated tracker to the variables it reads.
func (t *actorTrackers) dependOn(vars *dynamic.Bag) {
	for _, tr := range []*dynamic.Tracker{t.entity, t.typ, t.action, t.condition} {
		if tr.IsStatic() {
			continue
		}
		for _, name := range tr.Names() {
			if up, ok := vars.Get(name); ok {
				tr.DependsOn(up)
			}
		}
	}
}

// matches reports whether ev is for one of the actor's entities and
// types, and one of its actions when any are configured.
func (t *actorTrackers) matches(ev ActionEvent) bool {
	if !slices.Contains(values.Strings(t.entity.Value()), ev.Entity) {
		return false
	}
	if !slices.Contains(values.Strings(t.typ.Value()), ev.Type) {
		return false
	}
	actions := values.Strings(t.action.Value())
	return len(actions) == 0 || slices.Contains(actions, ev.Action)
}

func (t *actorTrackers) value(a workflow.Actor) ActorValue {
	return ActorValue{
		ID:                  a.ID,
		Index:               a.Index,
		Entity:              values.Strings(t.entity.Value()),
		Type:                values.Strings(t.typ.Value()),
		Action:              values.Strings(t.action.Value()),
		Condition:           templating.Truthy(t.condition.Value()),
		ConditionProvenance: t.condition.Provenance(),
	}
}

func (t *actorTrackers) close() {
	t.entity.Close()
	t.typ.Close()
	t.action.Close()
	t.condition.Close()
}

func stringsToAny(list []string) []any {
	out := make([]any, len(list))
	for i, s := range list {
		out[i] = s
	}
	return out
}
