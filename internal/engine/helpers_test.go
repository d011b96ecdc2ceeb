package engine

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-react/internal/state"
	"github.com/nerrad567/gray-logic-react/internal/trace"
	"github.com/nerrad567/gray-logic-react/internal/workflow"
)

// ─── Fakes ──────────────────────────────────────────────────────────────

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeEntry struct {
	when      time.Time
	fn        func()
	fired     bool
	cancelled bool
}

// fakeTimer records callbacks and fires them only when told to.
type fakeTimer struct {
	entries []*fakeEntry
}

func (f *fakeTimer) At(when time.Time, fn func()) func() {
	e := &fakeEntry{when: when, fn: fn}
	f.entries = append(f.entries, e)
	return func() { e.cancelled = true }
}

// fireDue runs every pending callback due at or before now, in the
// order they were scheduled. Callbacks scheduled while firing wait for
// the next call.
func (f *fakeTimer) fireDue(now time.Time) int {
	due := append([]*fakeEntry(nil), f.entries...)
	n := 0
	for _, e := range due {
		if e.fired || e.cancelled || e.when.After(now) {
			continue
		}
		e.fired = true
		n++
		e.fn()
	}
	return n
}

func (f *fakeTimer) pending() int {
	n := 0
	for _, e := range f.entries {
		if !e.fired && !e.cancelled {
			n++
		}
	}
	return n
}

// recordingDispatcher records output and optionally calls a hook.
type recordingDispatcher struct {
	reactions []ReactionEvent
	resets    []string
	onReact   func(ctx context.Context, ev ReactionEvent) error
}

func (d *recordingDispatcher) DispatchReaction(ctx context.Context, ev ReactionEvent) error {
	d.reactions = append(d.reactions, ev)
	if d.onReact != nil {
		return d.onReact(ctx, ev)
	}
	return nil
}

func (d *recordingDispatcher) ResetWorkflow(_ context.Context, workflowID string) error {
	d.resets = append(d.resets, workflowID)
	return nil
}

// ─── Setup ──────────────────────────────────────────────────────────────

var testStart = time.Date(2026, 5, 5, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	clock    *fakeClock
	timer    *fakeTimer
	dispatch *recordingDispatcher
	states   *state.Store
	traces   *trace.Store
	rt       *ReactRuntime

	runChanges      []RunChange
	reactionChanges []ReactionChange
}

func setupRuntime(t *testing.T, workflows ...*workflow.Workflow) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:    &fakeClock{t: testStart},
		timer:    &fakeTimer{},
		dispatch: &recordingDispatcher{},
		states:   state.NewStore(),
		traces:   trace.NewStore(time.Hour, nil),
	}
	env.rt = New(Options{
		States:     env.states,
		Timer:      env.timer,
		Dispatcher: env.dispatch,
		Traces:     env.traces,
		Now:        env.clock.now,
		Location:   time.UTC,
	})
	env.rt.Runs().Listen(func(c RunChange) { env.runChanges = append(env.runChanges, c) })
	env.rt.Reactions().Listen(func(c ReactionChange) { env.reactionChanges = append(env.reactionChanges, c) })
	env.rt.Load(workflows)
	return env
}

// mustWorkflow parses and validates a raw workflow definition.
func mustWorkflow(t *testing.T, id string, raw map[string]any) *workflow.Workflow {
	t.Helper()
	w, problems := workflow.Parse(id, raw)
	problems = append(problems, workflow.Problems(w)...)
	if len(problems) > 0 {
		t.Fatalf("workflow %s: %v", id, problems)
	}
	return w
}

// simpleWorkflow triggers on light1/on and reacts with the given reactor.
func simpleWorkflow(t *testing.T, id, mode string, reactor map[string]any) *workflow.Workflow {
	t.Helper()
	raw := map[string]any{
		"actor":   map[string]any{"entity": "light1", "type": "light", "action": "on"},
		"reactor": []any{reactor},
	}
	if mode != "" {
		raw["mode"] = mode
	}
	return mustWorkflow(t, id, raw)
}

var lightOn = ActionEvent{Entity: "light1", Type: "light", Action: "on", Context: "ctx-1"}

func (e *testEnv) trigger(ev ActionEvent) []*WorkflowRun {
	return e.rt.HandleAction(context.Background(), ev)
}

// removedResults returns the final result of every removed reaction.
func (e *testEnv) removedResults() []StepResult {
	var out []StepResult
	for _, c := range e.reactionChanges {
		if c.Kind == ChangeRemoved {
			out = append(out, c.Reaction.Result)
		}
	}
	return out
}
