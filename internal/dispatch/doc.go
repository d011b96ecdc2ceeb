// Package dispatch connects the react engine to the outside world.
//
// Egress: reactions and workflow resets leave the engine through an
// engine.Dispatcher. Fanout delivers each event to several dispatchers:
// MQTT (react/reaction/{type}/{entity}, react/workflow/{id}/reset), the
// WebSocket hub, and an optional Loopback that feeds reactions of type
// "react" back into the engine as action events on the same call chain.
//
// Ingress: Ingress subscribes to react/action/+/+ and react/state/+ and
// posts every message to the event loop, so the engine only ever runs on
// one goroutine.
//
// Registry relays: Relay mirrors run and reaction registry changes to the
// WebSocket hub and Telemetry writes terminal outcomes to InfluxDB.
package dispatch
