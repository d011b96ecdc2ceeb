// Package scheduler provides the wall-clock callbacks behind delay and
// schedule waits.
//
// Timer wraps a robfig/cron scheduler with one-shot entries. Callbacks
// are handed to a PostFunc, normally eventloop.Loop.Post, so that
// reactions resume on the engine's goroutine.
package scheduler
