package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-react/internal/dynamic"
	"github.com/nerrad567/gray-logic-react/internal/state"
	"github.com/nerrad567/gray-logic-react/internal/templating"
	"github.com/nerrad567/gray-logic-react/internal/trace"
	"github.com/nerrad567/gray-logic-react/internal/workflow"
)

// DefaultMaxCallDepth bounds synchronous trigger chains.
const DefaultMaxCallDepth = 16

// TraceSink receives finished traces.
type TraceSink interface {
	Save(ctx context.Context, t *trace.Trace) error
}

// Options configures a ReactRuntime.
type Options struct {
	// States is the live entity store templates read and state waits watch.
	States *state.Store

	// Timer fires delay and schedule waits. It must deliver callbacks on
	// the goroutine that drives the runtime.
	Timer Timer

	// Dispatcher receives reaction events and workflow resets (optional).
	Dispatcher Dispatcher

	// Traces stores finished run traces (optional).
	Traces TraceSink

	// Now overrides the clock (optional).
	Now func() time.Time

	// Location is the zone schedule times are read in (default time.Local).
	Location *time.Location

	// MaxCallDepth bounds synchronous trigger chains (default 16).
	MaxCallDepth int

	Logger Logger
}

// ReactRuntime owns every workflow runtime and the run and reaction
// registries.
//
// ReactRuntime is not safe for concurrent use: every method, and every
// Timer and state callback, must run on one goroutine (see
// internal/eventloop).
type ReactRuntime struct {
	states     *state.Store
	timer      Timer
	dispatcher Dispatcher
	traces     TraceSink
	now        func() time.Time
	loc        *time.Location
	maxDepth   int
	logger     Logger

	templates *templating.Engine
	env       *dynamic.Env

	runs      *RunRegistry
	reactions *ReactionRegistry

	workflows    map[string]*WorkflowRuntime
	order        []string
	shuttingDown bool
	shutdownCtx  context.Context
}

// New creates a runtime with no workflows loaded.
func New(opts Options) *ReactRuntime {
	rt := &ReactRuntime{
		states:     opts.States,
		timer:      opts.Timer,
		dispatcher: opts.Dispatcher,
		traces:     opts.Traces,
		now:        opts.Now,
		loc:        opts.Location,
		maxDepth:   opts.MaxCallDepth,
		logger:     opts.Logger,
		runs:       newRunRegistry(),
		reactions:  newReactionRegistry(),
		workflows:  make(map[string]*WorkflowRuntime),
	}
	if rt.states == nil {
		rt.states = state.NewStore()
	}
	if rt.dispatcher == nil {
		rt.dispatcher = noopDispatcher{}
	}
	if rt.now == nil {
		rt.now = time.Now
	}
	if rt.loc == nil {
		rt.loc = time.Local
	}
	if rt.maxDepth <= 0 {
		rt.maxDepth = DefaultMaxCallDepth
	}
	if rt.logger == nil {
		rt.logger = noopLogger{}
	}

	rt.templates = templating.NewEngine(rt.states)
	rt.env = &dynamic.Env{
		Renderer: rt.templates,
		Watcher:  rt.states,
		Logger:   rt.logger,
	}
	return rt
}

// Runs returns the run registry.
func (rt *ReactRuntime) Runs() *RunRegistry { return rt.runs }

// Reactions returns the reaction registry.
func (rt *ReactRuntime) Reactions() *ReactionRegistry { return rt.reactions }

// States returns the entity store.
func (rt *ReactRuntime) States() *state.Store { return rt.states }

// Load replaces every workflow. Existing runtimes are destroyed first,
// stopping their runs.
func (rt *ReactRuntime) Load(workflows []*workflow.Workflow) {
	for _, id := range rt.order {
		rt.workflows[id].destroy()
	}
	rt.workflows = make(map[string]*WorkflowRuntime, len(workflows))
	rt.order = nil

	for _, wf := range workflows {
		if _, dup := rt.workflows[wf.ID]; dup {
			rt.logger.Error("duplicate workflow id, skipped", "workflow_id", wf.ID)
			continue
		}
		rt.workflows[wf.ID] = newWorkflowRuntime(rt, wf)
		rt.order = append(rt.order, wf.ID)
	}
	rt.logger.Info("workflows loaded", "count", len(rt.order))
}

// Workflow returns the runtime of a loaded workflow.
func (rt *ReactRuntime) Workflow(id string) (*WorkflowRuntime, bool) {
	w, ok := rt.workflows[id]
	return w, ok
}

// WorkflowInfo summarises a loaded workflow.
type WorkflowInfo struct {
	ID        string         `json:"id"`
	Mode      workflow.Mode  `json:"mode"`
	Actors    int            `json:"actors"`
	Reactors  int            `json:"reactors"`
	Runs      int            `json:"runs"`
	Queued    int            `json:"queued"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Workflows lists loaded workflows in load order.
func (rt *ReactRuntime) Workflows() []WorkflowInfo {
	out := make([]WorkflowInfo, 0, len(rt.order))
	for _, id := range rt.order {
		w := rt.workflows[id]
		out = append(out, WorkflowInfo{
			ID:        id,
			Mode:      w.wf.Mode,
			Actors:    len(w.wf.Actors),
			Reactors:  len(w.wf.Reactors),
			Runs:      len(rt.runs.ByWorkflow(id)),
			Queued:    len(w.queue),
			Variables: w.vars.Values(),
		})
	}
	return out
}

// HandleAction matches ev against every workflow's actors, in load
// order then actor order, and runs each match. It returns the runs that
// were started or queued.
func (rt *ReactRuntime) HandleAction(ctx context.Context, ev ActionEvent) []*WorkflowRun {
	if rt.shuttingDown {
		return nil
	}

	var started []*WorkflowRun
	for _, id := range rt.order {
		w, ok := rt.workflows[id]
		if !ok {
			// Unloaded by a reload triggered from a dispatch.
			continue
		}
		for _, i := range w.matchingActors(ev) {
			if w.destroyed {
				break
			}
			run, err := rt.Run(ctx, id, w.snapshot(i, ev))
			if err != nil && !errors.Is(err, ErrRecursion) {
				rt.logger.Error("workflow run failed", "workflow_id", id, "error", err)
			}
			if run != nil {
				started = append(started, run)
			}
		}
	}
	return started
}

// Run starts a run of workflowID from a prepared snapshot, applying the
// workflow's mode.
func (rt *ReactRuntime) Run(ctx context.Context, workflowID string, snap *Snapshot) (*WorkflowRun, error) {
	w, ok := rt.workflows[workflowID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}
	return w.Run(ctx, snap)
}

// Trigger builds a snapshot for ev against the workflow's first actor
// and runs it, whether or not the actor matches ev.
func (rt *ReactRuntime) Trigger(ctx context.Context, workflowID string, ev ActionEvent) (*WorkflowRun, error) {
	w, ok := rt.workflows[workflowID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}
	index := 0
	if matches := w.matchingActors(ev); len(matches) > 0 {
		index = matches[0]
	}
	return w.Run(ctx, w.snapshot(index, ev))
}

// ResetWorkflow stops every run of workflowID and broadcasts the reset.
// An unknown id is logged and still broadcast.
func (rt *ReactRuntime) ResetWorkflow(ctx context.Context, workflowID string) error {
	if w, ok := rt.workflows[workflowID]; ok {
		w.StopAll()
	} else {
		rt.logger.Warn("reset of unknown workflow", "workflow_id", workflowID)
	}
	if err := rt.dispatcher.ResetWorkflow(ctx, workflowID); err != nil {
		return fmt.Errorf("broadcasting workflow reset: %w", err)
	}
	return nil
}

// RunNow force-resumes every waiting reaction of a run.
func (rt *ReactRuntime) RunNow(ctx context.Context, runID string) error {
	run, ok := rt.runs.Get(runID)
	if !ok {
		rt.logger.Warn("run_now: run not found", "run_id", runID)
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run.ForceResume(ctx)
}

// ReactNow force-resumes one reaction.
func (rt *ReactRuntime) ReactNow(ctx context.Context, reactionID string) error {
	re, ok := rt.reactions.Get(reactionID)
	if !ok {
		rt.logger.Warn("react_now: reaction not found", "reaction_id", reactionID)
		return fmt.Errorf("%w: %s", ErrReactionNotFound, reactionID)
	}
	return re.ForceResume(ctx)
}

// DeleteRun stops a run.
func (rt *ReactRuntime) DeleteRun(runID string) error {
	run, ok := rt.runs.Get(runID)
	if !ok {
		rt.logger.Warn("delete_run: run not found", "run_id", runID)
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	run.Stop()
	return nil
}

// DeleteReaction stops one reaction.
func (rt *ReactRuntime) DeleteReaction(reactionID string) error {
	re, ok := rt.reactions.Get(reactionID)
	if !ok {
		rt.logger.Warn("delete_reaction: reaction not found", "reaction_id", reactionID)
		return fmt.Errorf("%w: %s", ErrReactionNotFound, reactionID)
	}
	re.Stop()
	return nil
}

// Trace returns a copy of a live run's trace.
func (rt *ReactRuntime) Trace(runID string) (*trace.Trace, bool) {
	run, ok := rt.runs.Get(runID)
	if !ok {
		return nil, false
	}
	return run.Trace(), true
}

// Shutdown stops every run. Waiting reactions with restart mode force
// are driven to completion instead of being stopped, dispatching with
// ctx. New actions are ignored afterwards.
func (rt *ReactRuntime) Shutdown(ctx context.Context) {
	if rt.shuttingDown {
		return
	}
	rt.shuttingDown = true
	rt.shutdownCtx = ctx
	rt.logger.Info("shutting down react runtime",
		"runs", rt.runs.Len(), "reactions", rt.reactions.Len())

	for _, id := range rt.order {
		rt.workflows[id].destroy()
	}
}

// ShuttingDown reports whether Shutdown has been called.
func (rt *ReactRuntime) ShuttingDown() bool {
	return rt.shuttingDown
}
