// Package influxdb records react engine telemetry in InfluxDB v2.
//
// Two measurements are written:
//
//	react_runs       tags: workflow_id, state      fields: run_id, duration_ms, reactions
//	react_reactions  tags: workflow_id, reactor_id, result  fields: count, waited_ms
//
// Writes are non-blocking; the influxdb2 client batches points and
// reports failures through the SetOnError callback. Telemetry is optional:
// when influxdb.enabled is false, Connect returns ErrDisabled and the
// engine runs without it.
package influxdb
