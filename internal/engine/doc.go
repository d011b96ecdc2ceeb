// Package engine runs workflows.
//
// The pieces, from the outside in:
//
//   - ReactRuntime owns one WorkflowRuntime per loaded workflow and the
//     process-wide RunRegistry and ReactionRegistry. HandleAction matches
//     an inbound ActionEvent against actors and starts runs.
//   - WorkflowRuntime applies the workflow mode (parallel, single, queued
//     or restart), guards against a workflow re-triggering itself on the
//     same call chain, and keeps variables and actor attributes live.
//   - WorkflowRun checks the actor condition and starts one Reaction per
//     reactor. It finishes once none of its reactions remain registered.
//   - Reaction is a state machine: condition, then per payload an optional
//     wait (delay, schedule or state) and a dispatch or workflow reset.
//     Waits suspend with a YIELD_* result and one pending callback.
//
// Everything runs on a single goroutine. Timer and state callbacks must
// be delivered on it (see internal/eventloop), so registries and runs
// need no locks.
//
// Call chains are tracked through the context: a Dispatcher that feeds
// reaction events back into HandleAction must pass the context it was
// given so self-triggering workflows are detected.
package engine
