package engine

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/gray-logic-react/internal/trace"
)

// RunState is the lifecycle state of a run.
type RunState string

const (
	RunQueued   RunState = "queued"
	RunRunning  RunState = "running"
	RunFinished RunState = "finished"
)

// WorkflowRun is one execution of a workflow for one triggering event.
//
// Its reactions are found through the reaction registry rather than
// held directly. The run finishes, exactly once, when none of its
// reactions remain registered.
type WorkflowRun struct {
	ID string

	rt       *ReactRuntime
	runtime  *WorkflowRuntime
	snapshot *Snapshot
	trace    *trace.Trace

	state    RunState
	created  time.Time
	finishAt time.Time
	starting bool
	finished bool
}

func newRun(w *WorkflowRuntime, snap *Snapshot, state RunState) *WorkflowRun {
	return &WorkflowRun{
		rt:       w.rt,
		runtime:  w,
		snapshot: snap,
		state:    state,
		created:  w.rt.now(),
	}
}

// WorkflowID returns the id of the workflow being run.
func (run *WorkflowRun) WorkflowID() string { return run.runtime.wf.ID }

// State returns the lifecycle state.
func (run *WorkflowRun) State() RunState { return run.state }

// Snapshot returns the snapshot the run was started with.
func (run *WorkflowRun) Snapshot() *Snapshot { return run.snapshot }

// Trace returns a copy of the run's trace.
func (run *WorkflowRun) Trace() *trace.Trace { return run.trace.Clone() }

// RunInfo is a read-only view of a run.
type RunInfo struct {
	ID         string      `json:"id"`
	WorkflowID string      `json:"workflow_id"`
	State      RunState    `json:"state"`
	Created    time.Time   `json:"created"`
	Finished   *time.Time  `json:"finished,omitempty"`
	Event      ActionEvent `json:"event"`
	ActorID    string      `json:"actor_id"`
	Reactions  int         `json:"reactions"`
}

// Info returns a snapshot of the run's state.
func (run *WorkflowRun) Info() RunInfo {
	info := RunInfo{
		ID:         run.ID,
		WorkflowID: run.WorkflowID(),
		State:      run.state,
		Created:    run.created,
		Event:      run.snapshot.Event,
		ActorID:    run.snapshot.Actor.ID,
		Reactions:  len(run.rt.reactions.ByRun(run.ID)),
	}
	if run.finished {
		f := run.finishAt
		info.Finished = &f
	}
	return info
}

// initTrace seeds the trace with the run's inputs. The id is only known
// after registration.
func (run *WorkflowRun) initTrace() {
	ev := run.snapshot.Event
	vars := map[string]any{
		"entity":    ev.Entity,
		"type":      ev.Type,
		"action":    ev.Action,
		"data":      ev.Data,
		"context":   ev.Context,
		"variables": run.snapshot.Variables,
	}
	run.trace = trace.New(run.ID, run.WorkflowID(), ev.Context, run.created, vars)
}

// Start checks the actor condition, then creates, registers and starts
// one reaction per reactor in configuration order. It returns once every
// reaction has suspended or finished, with the first reaction error.
func (run *WorkflowRun) Start(ctx context.Context) error {
	if run.finished {
		return nil
	}
	run.state = RunRunning
	run.rt.runs.updated(run)

	if err := run.checkActor(); err != nil {
		if errors.Is(err, ErrConditionFailed) {
			run.finish()
			return nil
		}
		return err
	}

	if len(run.snapshot.Reactors) > 1 {
		run.trace.Add(trace.Node{
			Path:      trace.PathParallel,
			Timestamp: run.rt.now(),
			Result:    map[string]any{"reactors": len(run.snapshot.Reactors)},
		})
	}

	run.starting = true
	var firstErr error
	var reactions []*Reaction
	for _, rv := range run.snapshot.Reactors {
		if run.finished {
			break
		}
		re := newReaction(run, rv)
		if err := run.rt.reactions.register(re, rv.Overwrite); err != nil {
			run.rt.logger.Error("failed to register reaction",
				"run_id", run.ID, "reactor_id", rv.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		reactions = append(reactions, re)
	}

	for _, re := range reactions {
		if err := re.start(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	run.starting = false

	run.checkDone()
	return firstErr
}

func (run *WorkflowRun) checkActor() error {
	actor := run.snapshot.Actor
	run.trace.Add(trace.Node{
		Path:      trace.ActorPath(actor.Index),
		Timestamp: run.rt.now(),
		Result: map[string]any{
			"condition":  actor.Condition,
			"provenance": string(actor.ConditionProvenance),
		},
	})
	if !actor.Condition {
		run.rt.logger.Debug("actor condition false, run skipped",
			"workflow_id", run.WorkflowID(), "run_id", run.ID, "actor_id", actor.ID)
		return ErrConditionFailed
	}
	return nil
}

// Stop stops every reaction of the run. A queued run is dropped from
// the queue and finished.
func (run *WorkflowRun) Stop() {
	if run.finished {
		return
	}
	if run.state == RunQueued {
		run.runtime.dequeue(run)
		run.finish()
		return
	}
	for _, re := range run.rt.reactions.ByRun(run.ID) {
		re.Stop()
	}
	run.checkDone()
}

// ForceResume drives every waiting reaction of the run to completion.
func (run *WorkflowRun) ForceResume(ctx context.Context) error {
	var firstErr error
	for _, re := range run.rt.reactions.ByRun(run.ID) {
		if err := re.ForceResume(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (run *WorkflowRun) reactionDone(*Reaction) {
	run.rt.runs.updated(run)
	run.checkDone()
}

func (run *WorkflowRun) checkDone() {
	if run.starting || run.finished || run.state != RunRunning {
		return
	}
	if len(run.rt.reactions.ByRun(run.ID)) == 0 {
		run.finish()
	}
}

// finish records the end of the run, removes it from the registry and
// lets the workflow runtime start the next queued run.
func (run *WorkflowRun) finish() {
	if run.finished {
		return
	}
	run.finished = true
	run.state = RunFinished
	run.finishAt = run.rt.now()

	run.trace.Done(run.finishAt)
	if run.rt.traces != nil {
		if err := run.rt.traces.Save(context.Background(), run.trace); err != nil {
			run.rt.logger.Warn("failed to save trace", "run_id", run.ID, "error", err)
		}
	}

	run.rt.runs.remove(run)
	run.rt.logger.Debug("run finished", "workflow_id", run.WorkflowID(), "run_id", run.ID)
	run.runtime.runFinished(run)
}
