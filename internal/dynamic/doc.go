// Package dynamic holds configuration attributes whose values may be
// templates.
//
// Two renderers share one vocabulary:
//
//   - Tracker keeps a value live. Template trackers watch the entities
//     their template reads and re-render on change, notifying OnUpdate
//     subscribers. Workflow variables, actor conditions and state waits
//     are trackers.
//   - Render (a jitter) evaluates a value exactly once against the data
//     of one triggering event. Reactor attributes are rendered this way
//     so each reaction reflects the event that produced it.
//
// Every value carries a Provenance (default, value, template or source)
// which is copied into run traces.
package dynamic
