package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-react/internal/dynamic"
	"github.com/nerrad567/gray-logic-react/internal/templating"
	"github.com/nerrad567/gray-logic-react/internal/trace"
	"github.com/nerrad567/gray-logic-react/internal/values"
	"github.com/nerrad567/gray-logic-react/internal/workflow"
)

// suppressedForwards are triggering actions never forwarded by a
// forward_action reactor; each is paired with a concrete action that is
// forwarded on its own.
var suppressedForwards = map[string]bool{
	"toggle":      true,
	"available":   true,
	"unavailable": true,
}

type reactionPhase int

const (
	phaseCondition reactionPhase = iota
	phaseWait
	phaseAct
	phaseDone
)

// ReactionData is one dispatch produced by a reaction. A reactor with
// several entities, types, actions or data entries produces one per
// combination.
type ReactionData struct {
	Entity string         `json:"entity"`
	Type   string         `json:"type"`
	Action string         `json:"action,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Reaction executes one reactor within a run as an explicit state machine:
//
//	condition ─► for each payload: [wait] ─► dispatch or reset ─► done
//
// A wait suspends the reaction with a YIELD_* result and registers a
// single callback (timer or template watch) that resumes it. All methods
// run on the engine goroutine.
type Reaction struct {
	ID string

	rt          *ReactRuntime
	run         *WorkflowRun
	reactor     ReactorValue
	restartMode workflow.RestartMode
	created     time.Time

	result   StepResult
	when     time.Time
	phase    reactionPhase
	payloads []ReactionData
	next     int
	err      error

	forced     bool
	stepping   bool
	finished   bool
	cancelWait func()
}

func newReaction(run *WorkflowRun, reactor ReactorValue) *Reaction {
	return &Reaction{
		rt:          run.rt,
		run:         run,
		reactor:     reactor,
		restartMode: reactor.Wait.RestartMode(),
		created:     run.rt.now(),
	}
}

// WorkflowID returns the id of the workflow the reaction belongs to.
func (r *Reaction) WorkflowID() string { return r.run.WorkflowID() }

// RunID returns the id of the owning run.
func (r *Reaction) RunID() string { return r.run.ID }

// ReactorID returns the id of the reactor being executed.
func (r *Reaction) ReactorID() string { return r.reactor.ID }

// Result returns the current step result.
func (r *Reaction) Result() StepResult { return r.result }

// When returns the fire time of the current delay or schedule wait.
func (r *Reaction) When() time.Time { return r.when }

// ReactionInfo is a read-only view of a reaction.
type ReactionInfo struct {
	ID          string               `json:"id"`
	RunID       string               `json:"run_id"`
	WorkflowID  string               `json:"workflow_id"`
	ReactorID   string               `json:"reactor_id"`
	Result      StepResult           `json:"result"`
	When        *time.Time           `json:"when,omitempty"`
	RestartMode workflow.RestartMode `json:"restart_mode"`
	Created     time.Time            `json:"created"`
	Entity      []string             `json:"entity,omitempty"`
	Type        []string             `json:"type,omitempty"`
	Action      []string             `json:"action,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// Info returns a snapshot of the reaction's state.
func (r *Reaction) Info() ReactionInfo {
	info := ReactionInfo{
		ID:          r.ID,
		RunID:       r.run.ID,
		WorkflowID:  r.run.WorkflowID(),
		ReactorID:   r.reactor.ID,
		Result:      r.result,
		RestartMode: r.restartMode,
		Created:     r.created,
		Entity:      append([]string(nil), r.reactor.Entity...),
		Type:        append([]string(nil), r.reactor.Type...),
		Action:      append([]string(nil), r.reactor.Action...),
	}
	if !r.when.IsZero() {
		w := r.when
		info.When = &w
	}
	if r.err != nil {
		info.Error = r.err.Error()
	}
	return info
}

// start runs the reaction up to its first suspension or completion.
func (r *Reaction) start(ctx context.Context) error {
	if r.finished || r.result != ResultNone {
		return nil
	}
	return r.advance(ctx)
}

// advance steps the state machine and records the outcome.
func (r *Reaction) advance(ctx context.Context) error {
	r.stepping = true
	res, err := r.step(ctx)
	r.stepping = false

	if r.finished {
		// Stopped from inside a dispatch.
		return nil
	}
	if err != nil {
		r.err = err
		r.rt.logger.Error("reaction failed",
			"workflow_id", r.WorkflowID(), "run_id", r.RunID(),
			"reaction_id", r.ID, "reactor_id", r.reactor.ID, "error", err)
		res = ResultFail
	}

	r.setResult(res)
	if res.IsDone() {
		r.finish()
	}
	return err
}

func (r *Reaction) step(ctx context.Context) (res StepResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = ResultFail, fmt.Errorf("panic in reaction: %v", p)
		}
	}()

	for !r.finished {
		switch r.phase {
		case phaseCondition:
			r.addNode("condition", map[string]any{"condition": r.reactor.Condition}, nil)
			if !r.reactor.Condition {
				r.phase = phaseDone
				return ResultStop, nil
			}
			r.payloads = r.buildPayloads()
			r.phase = phaseWait

		case phaseWait:
			if r.next >= len(r.payloads) {
				r.phase = phaseDone
				return ResultSuccess, nil
			}
			r.phase = phaseAct
			if r.reactor.Wait == nil || r.forced {
				continue
			}
			res, err := r.suspend()
			if err != nil {
				return ResultFail, err
			}
			if res != ResultNone {
				return res, nil
			}

		case phaseAct:
			p := r.payloads[r.next]
			r.next++
			r.phase = phaseWait
			if err := r.act(ctx, p); err != nil {
				return ResultFail, err
			}

		case phaseDone:
			return r.result, nil
		}
	}
	return r.result, nil
}

// buildPayloads expands the reactor into one payload per combination of
// entity, type, action and data. A reset reactor has a single payload.
func (r *Reaction) buildPayloads() []ReactionData {
	if r.reactor.ResetWorkflow != "" {
		return []ReactionData{{}}
	}

	ev := r.run.snapshot.Event
	actions := r.reactor.Action
	if r.reactor.ForwardAction {
		actions = []string{ev.Action}
	}
	if len(actions) == 0 {
		actions = []string{""}
	}
	data := r.reactor.Data
	if r.reactor.ForwardData {
		data = []map[string]any{ev.Data}
	}
	if len(data) == 0 {
		data = []map[string]any{nil}
	}

	var out []ReactionData
	for _, entity := range r.reactor.Entity {
		for _, typ := range r.reactor.Type {
			for _, action := range actions {
				for _, d := range data {
					out = append(out, ReactionData{
						Entity: entity,
						Type:   typ,
						Action: action,
						Data:   values.CopyMap(d),
					})
				}
			}
		}
	}
	return out
}

// suspend starts the configured wait. ResultNone means proceed now.
func (r *Reaction) suspend() (StepResult, error) {
	w := r.reactor.Wait

	if w.State != nil {
		return r.waitState(w.State), nil
	}

	when, err := CalculateReactionTime(r.rt.now(), w, r.rt.loc)
	if err != nil {
		r.addNode("wait", nil, err)
		return ResultFail, err
	}
	if when.IsZero() {
		return ResultNone, nil
	}
	r.when = when

	result := ResultYieldDelay
	node := map[string]any{"when": when.Format(time.RFC3339)}
	if w.Delay != nil {
		node["delay"] = w.Delay.Duration().String()
	} else {
		result = ResultYieldSchedule
		node["schedule"] = w.Schedule.At.String()
	}
	r.addNode("wait", node, nil)

	r.setPending(r.rt.timer.At(when, r.wake))
	return result, nil
}

// waitState watches the state condition. An already-true condition
// proceeds without suspending.
func (r *Reaction) waitState(cond *workflow.StateWait) StepResult {
	tr := dynamic.NewTracker(r.rt.env, r.reactor.ID+".wait.state", cond.Condition, false,
		r.run.snapshot.TemplateData)

	met := templating.Truthy(tr.Value())
	r.addNode("wait", map[string]any{
		"state":   fmt.Sprint(cond.Condition),
		"timeout": 0,
		"met":     met,
	}, nil)
	if met {
		tr.Close()
		return ResultNone
	}

	unsubscribe := tr.OnUpdate(func() {
		if templating.Truthy(tr.Value()) {
			r.wake()
		}
	})
	r.setPending(func() {
		unsubscribe()
		tr.Close()
	})
	return ResultYieldState
}

// act dispatches one payload, or broadcasts the reset.
func (r *Reaction) act(ctx context.Context, p ReactionData) error {
	if target := r.reactor.ResetWorkflow; target != "" {
		r.addNode("reset", map[string]any{"workflow_id": target}, nil)
		return r.rt.ResetWorkflow(ctx, target)
	}

	if r.reactor.ForwardAction && suppressedForwards[p.Action] {
		r.addNode("dispatch", map[string]any{"skipped": true, "action": p.Action}, nil)
		return nil
	}

	ev := ReactionEvent{
		WorkflowID: r.WorkflowID(),
		RunID:      r.RunID(),
		ReactionID: r.ID,
		ReactorID:  r.reactor.ID,
		Entity:     p.Entity,
		Type:       p.Type,
		Action:     p.Action,
		Data:       p.Data,
		Context:    r.run.snapshot.Event.Context,
	}
	r.addNode("dispatch", map[string]any{
		"entity": ev.Entity,
		"type":   ev.Type,
		"action": ev.Action,
		"data":   values.CopyMap(ev.Data),
	}, nil)

	if err := r.rt.dispatcher.DispatchReaction(ctx, ev); err != nil {
		return fmt.Errorf("dispatching reaction: %w", err)
	}
	return nil
}

// wake is the callback registered by a wait.
func (r *Reaction) wake() {
	r.clearPending()
	if err := r.resume(context.Background()); err != nil {
		r.rt.logger.Warn("reaction resume failed", "reaction_id", r.ID, "error", err)
	}
}

// resume continues a suspended reaction. Resuming a reaction that is
// not suspended is ErrInvalidResume; one that has not finished is
// failed.
func (r *Reaction) resume(ctx context.Context) error {
	if r.finished || r.result.IsDone() {
		r.rt.logger.Error("resume of finished reaction", "reaction_id", r.ID, "result", r.result.String())
		return ErrInvalidResume
	}
	if r.stepping {
		return ErrInvalidResume
	}
	if !r.result.IsYield() {
		r.err = ErrInvalidResume
		r.rt.logger.Error("resume of reaction that is not waiting", "reaction_id", r.ID, "result", r.result.String())
		r.clearPending()
		r.setResult(ResultFail)
		r.finish()
		return ErrInvalidResume
	}
	return r.advance(ctx)
}

// ForceResume skips every remaining wait and drives the reaction to
// completion.
func (r *Reaction) ForceResume(ctx context.Context) error {
	if r.finished || r.result.IsDone() {
		return ErrInvalidResume
	}
	r.forced = true
	if r.stepping {
		// The running step sees forced at its next wait.
		return nil
	}

	r.clearPending()
	for !r.finished && !r.result.IsDone() {
		if err := r.advance(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop ends the reaction without dispatching. During shutdown a waiting
// reaction with restart mode force is driven to completion instead.
func (r *Reaction) Stop() {
	if r.finished {
		return
	}
	if r.rt.shuttingDown && r.restartMode == workflow.RestartForce && r.result.IsYield() && !r.stepping {
		if err := r.ForceResume(r.rt.shutdownCtx); err != nil {
			r.rt.logger.Warn("forced resume at shutdown failed", "reaction_id", r.ID, "error", err)
		}
		return
	}

	r.clearPending()
	r.phase = phaseDone
	r.setResult(ResultStop)
	r.finish()
}

func (r *Reaction) setPending(cancel func()) {
	r.clearPending()
	r.cancelWait = cancel
}

func (r *Reaction) clearPending() {
	if r.cancelWait != nil {
		cancel := r.cancelWait
		r.cancelWait = nil
		cancel()
	}
}

func (r *Reaction) setResult(res StepResult) {
	if r.result == res {
		return
	}
	r.result = res
	r.rt.reactions.updated(r)
}

// finish removes the reaction and tells its run. It runs once.
func (r *Reaction) finish() {
	if r.finished {
		return
	}
	r.finished = true
	r.clearPending()
	r.rt.reactions.remove(r)
	r.rt.logger.Debug("reaction finished",
		"workflow_id", r.WorkflowID(), "run_id", r.RunID(),
		"reaction_id", r.ID, "result", r.result.String())
	r.run.reactionDone(r)
}

func (r *Reaction) addNode(step string, result map[string]any, err error) {
	n := trace.Node{
		Path:      trace.ReactorPath(r.reactor.Index, step),
		Timestamp: r.rt.now(),
		Result:    result,
	}
	if err != nil {
		n.Error = err.Error()
	}
	r.run.trace.Add(n)
}
