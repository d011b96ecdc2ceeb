// Package state keeps the live state of the entities that workflow
// templates read.
//
// State arrives from MQTT (react/state/{entity}) and the REST API. Every
// change is pushed synchronously to watchers, which is how live trackers
// and state waits learn that a template may have a new value:
//
//	MQTT / API ──► Store.Set ──► Watch callbacks ──► Tracker.Refresh
//
// The store never blocks on a watcher holding its lock, so watchers can
// read state or cancel watches from inside a callback.
package state
