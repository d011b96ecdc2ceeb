// Package api implements the HTTP REST API and WebSocket server for the
// react engine.
//
// This package provides:
//   - REST endpoints to inspect workflows, runs, reactions and traces
//   - Operator commands: reload, run-now, react-now, delete run/reaction
//   - Action injection and entity state updates
//   - Audit trail of operator commands, written asynchronously
//   - WebSocket hub streaming dispatched reactions and registry changes
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Concurrency
//
// The engine is single-threaded. Every handler that touches it runs its
// work on the event loop through Executor.Do and waits for the result,
// so HTTP goroutines never read engine state directly.
//
// # Graceful Degradation
//
// The server runs without MQTT: actions and states can still be injected
// over HTTP and reactions still reach WebSocket clients.
package api
