package engine

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-react/internal/dynamic"
	"github.com/nerrad567/gray-logic-react/internal/workflow"
)

// WorkflowRuntime applies a workflow's concurrency mode to incoming
// triggers and keeps its variables and actors live. There is one per
// loaded workflow.
type WorkflowRuntime struct {
	rt     *ReactRuntime
	wf     *workflow.Workflow
	vars   *dynamic.Bag
	actors []*actorTrackers

	queue     []*WorkflowRun
	destroyed bool
}

func newWorkflowRuntime(rt *ReactRuntime, wf *workflow.Workflow) *WorkflowRuntime {
	w := &WorkflowRuntime{rt: rt, wf: wf}
	w.vars = dynamic.NewBag(rt.env, wf.Variables, nil)

	data := func() map[string]any { return w.vars.Values() }
	for _, a := range wf.Actors {
		at := newActorTrackers(rt.env, a, data)
		at.dependOn(w.vars)
		w.actors = append(w.actors, at)
	}
	return w
}

// Workflow returns the workflow definition.
func (w *WorkflowRuntime) Workflow() *workflow.Workflow {
	return w.wf
}

// matchingActors returns the indexes of actors that match ev, in order.
func (w *WorkflowRuntime) matchingActors(ev ActionEvent) []int {
	var out []int
	for i, a := range w.actors {
		if a.matches(ev) {
			out = append(out, i)
		}
	}
	return out
}

// Run starts (or queues) a run for snap according to the workflow mode.
// It returns a nil run when the trigger was skipped: single mode with a
// run active, or recursion detected (ErrRecursion).
func (w *WorkflowRuntime) Run(ctx context.Context, snap *Snapshot) (*WorkflowRun, error) {
	if w.destroyed {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, w.wf.ID)
	}

	if depth := callDepth(ctx); depth >= w.rt.maxDepth {
		w.rt.logger.Warn("call chain too deep, run skipped",
			"workflow_id", w.wf.ID, "depth", depth)
		return nil, ErrRecursion
	}

	switch w.wf.Mode {
	case workflow.ModeSingle:
		if len(w.rt.runs.ByWorkflow(w.wf.ID)) > 0 {
			w.rt.logger.Info("workflow already running, run skipped", "workflow_id", w.wf.ID)
			return nil, nil
		}

	case workflow.ModeRestart:
		if inCallStack(ctx, w) {
			w.rt.logger.Warn("workflow restarted itself, run skipped", "workflow_id", w.wf.ID)
			return nil, ErrRecursion
		}
		w.StopAll()

	case workflow.ModeQueued:
		if inCallStack(ctx, w) {
			w.rt.logger.Warn("workflow queued itself, run skipped", "workflow_id", w.wf.ID)
			return nil, ErrRecursion
		}
		if len(w.rt.runs.ByWorkflow(w.wf.ID)) > 0 {
			run, err := w.register(snap, RunQueued)
			if err != nil {
				return nil, err
			}
			w.queue = append(w.queue, run)
			w.rt.logger.Debug("run queued", "workflow_id", w.wf.ID, "run_id", run.ID, "queued", len(w.queue))
			return run, nil
		}
	}

	run, err := w.register(snap, RunRunning)
	if err != nil {
		return nil, err
	}
	return run, run.Start(withRuntime(ctx, w))
}

func (w *WorkflowRuntime) register(snap *Snapshot, state RunState) (*WorkflowRun, error) {
	run := newRun(w, snap, state)
	if err := w.rt.runs.register(run); err != nil {
		return nil, err
	}
	run.initTrace()
	return run, nil
}

// runFinished starts the next queued run once no run is active.
func (w *WorkflowRuntime) runFinished(*WorkflowRun) {
	if w.destroyed || len(w.queue) == 0 {
		return
	}
	for _, run := range w.rt.runs.ByWorkflow(w.wf.ID) {
		if run.state == RunRunning {
			return
		}
	}

	next := w.queue[0]
	w.queue = w.queue[1:]
	if err := next.Start(withRuntime(context.Background(), w)); err != nil {
		w.rt.logger.Error("queued run failed to start",
			"workflow_id", w.wf.ID, "run_id", next.ID, "error", err)
	}
}

func (w *WorkflowRuntime) dequeue(run *WorkflowRun) {
	for i, q := range w.queue {
		if q == run {
			w.queue = append(w.queue[:i], w.queue[i+1:]...)
			return
		}
	}
}

// StopAll stops every run of the workflow, queued runs first so none
// starts while the active ones are being stopped.
func (w *WorkflowRuntime) StopAll() {
	queued := w.queue
	w.queue = nil
	for _, run := range queued {
		run.Stop()
	}
	for _, run := range w.rt.runs.ByWorkflow(w.wf.ID) {
		run.Stop()
	}
}

// destroy stops every run and releases trackers.
func (w *WorkflowRuntime) destroy() {
	w.StopAll()
	w.destroyed = true
	for _, a := range w.actors {
		a.close()
	}
	w.vars.Close()
}
