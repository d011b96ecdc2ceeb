package dispatch

import (
	"time"

	"github.com/nerrad567/gray-logic-react/internal/engine"
)

// Registries is the engine surface relays listen on.
type Registries interface {
	Runs() *engine.RunRegistry
	Reactions() *engine.ReactionRegistry
}

// Relay mirrors registry changes to WebSocket clients on the
// run.changed and reaction.changed channels.
type Relay struct {
	hub Broadcaster
}

// NewRelay creates a relay broadcasting through hub.
func NewRelay(hub Broadcaster) *Relay {
	return &Relay{hub: hub}
}

// Attach registers the relay on both registries.
func (r *Relay) Attach(reg Registries) {
	reg.Runs().Listen(func(c engine.RunChange) {
		r.hub.Broadcast(ChannelRunChanged, c)
	})
	reg.Reactions().Listen(func(c engine.ReactionChange) {
		r.hub.Broadcast(ChannelReactionChanged, c)
	})
}

// MetricWriter is the InfluxDB surface telemetry needs.
type MetricWriter interface {
	WriteRunMetric(workflowID, runID, state string, duration time.Duration, reactions int)
	WriteReactionMetric(workflowID, reactorID, result string, waited time.Duration)
}

// Telemetry writes one point per finished run and per finished reaction.
type Telemetry struct {
	w   MetricWriter
	now func() time.Time

	// reactions counts reactions per live run so the run point can
	// carry the total.
	reactions map[string]int
}

// NewTelemetry creates telemetry writing through w.
func NewTelemetry(w MetricWriter, now func() time.Time) *Telemetry {
	if now == nil {
		now = time.Now
	}
	return &Telemetry{w: w, now: now, reactions: make(map[string]int)}
}

// Attach registers telemetry on both registries.
func (t *Telemetry) Attach(reg Registries) {
	reg.Reactions().Listen(t.onReaction)
	reg.Runs().Listen(t.onRun)
}

func (t *Telemetry) onReaction(c engine.ReactionChange) {
	switch c.Kind {
	case engine.ChangeAdded:
		t.reactions[c.Reaction.RunID]++
	case engine.ChangeRemoved:
		re := c.Reaction
		t.w.WriteReactionMetric(re.WorkflowID, re.ReactorID, re.Result.String(), t.now().Sub(re.Created))
	}
}

func (t *Telemetry) onRun(c engine.RunChange) {
	if c.Kind != engine.ChangeRemoved {
		return
	}
	run := c.Run
	end := t.now()
	if run.Finished != nil {
		end = *run.Finished
	}
	count := t.reactions[run.ID]
	delete(t.reactions, run.ID)
	t.w.WriteRunMetric(run.WorkflowID, run.ID, string(run.State), end.Sub(run.Created), count)
}
