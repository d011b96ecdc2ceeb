package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the engine.
const (
	MeasurementRuns      = "react_runs"
	MeasurementReactions = "react_reactions"
)

// WriteRunMetric records a finished workflow run.
//
// Tags stay low-cardinality (workflow and final state); the run id is a
// field so it can be correlated with traces without exploding series.
//
// Example:
//
//	client.WriteRunMetric("hall_lights", "a1b2c3d4e5f6", "finished", 1250*time.Millisecond, 2)
func (c *Client) WriteRunMetric(workflowID, runID, state string, duration time.Duration, reactions int) {
	c.writePoint(MeasurementRuns,
		map[string]string{
			"workflow_id": workflowID,
			"state":       state,
		},
		map[string]any{
			"run_id":      runID,
			"duration_ms": duration.Milliseconds(),
			"reactions":   reactions,
		},
		time.Now(),
	)
}

// WriteReactionMetric records a reaction reaching a terminal result.
//
// Parameters:
//   - workflowID, reactorID: identify the reactor definition
//   - result: terminal StepResult name (success, fail, stop)
//   - waited: time spent suspended on delay, schedule or state waits
func (c *Client) WriteReactionMetric(workflowID, reactorID, result string, waited time.Duration) {
	c.writePoint(MeasurementReactions,
		map[string]string{
			"workflow_id": workflowID,
			"reactor_id":  reactorID,
			"result":      result,
		},
		map[string]any{
			"count":     1,
			"waited_ms": waited.Milliseconds(),
		},
		time.Now(),
	)
}

// WritePoint writes a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.writePoint(measurement, tags, fields, time.Now())
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() || c.writer == nil {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
