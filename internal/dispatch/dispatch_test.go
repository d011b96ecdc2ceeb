package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-react/internal/engine"
	"github.com/nerrad567/gray-logic-react/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-react/internal/state"
	"github.com/nerrad567/gray-logic-react/internal/workflow"
)

// ─── Mocks ──────────────────────────────────────────────────────────────

type published struct {
	topic   string
	payload []byte
}

type mockPublisher struct {
	msgs []published
	err  error
}

func (m *mockPublisher) PublishJSON(topic string, v any, _ bool) error {
	if m.err != nil {
		return m.err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.msgs = append(m.msgs, published{topic: topic, payload: data})
	return nil
}

type broadcast struct {
	channel string
	payload any
}

type mockHub struct {
	msgs []broadcast
}

func (m *mockHub) Broadcast(channel string, payload any) {
	m.msgs = append(m.msgs, broadcast{channel: channel, payload: payload})
}

func (m *mockHub) channels() []string {
	out := make([]string, 0, len(m.msgs))
	for _, b := range m.msgs {
		out = append(out, b.channel)
	}
	return out
}

type mockSubscriber struct {
	handlers map[string]mqtt.MessageHandler
	err      error
}

func (m *mockSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if m.err != nil {
		return m.err
	}
	if m.handlers == nil {
		m.handlers = make(map[string]mqtt.MessageHandler)
	}
	m.handlers[topic] = handler
	return nil
}

// inlinePoster runs posted work immediately.
type inlinePoster struct {
	stopped bool
}

func (p *inlinePoster) Post(fn func()) bool {
	if p.stopped {
		return false
	}
	fn()
	return true
}

type recordingHandler struct {
	events []engine.ActionEvent
}

func (h *recordingHandler) HandleAction(_ context.Context, ev engine.ActionEvent) []*engine.WorkflowRun {
	h.events = append(h.events, ev)
	return nil
}

type failingDispatcher struct{}

func (failingDispatcher) DispatchReaction(context.Context, engine.ReactionEvent) error {
	return errors.New("reaction failed")
}

func (failingDispatcher) ResetWorkflow(context.Context, string) error {
	return errors.New("reset failed")
}

type metricCall struct {
	kind      string
	workflow  string
	id        string
	result    string
	duration  time.Duration
	reactions int
}

type mockMetrics struct {
	calls []metricCall
}

func (m *mockMetrics) WriteRunMetric(workflowID, runID, state string, d time.Duration, reactions int) {
	m.calls = append(m.calls, metricCall{"run", workflowID, runID, state, d, reactions})
}

func (m *mockMetrics) WriteReactionMetric(workflowID, reactorID, result string, waited time.Duration) {
	m.calls = append(m.calls, metricCall{"reaction", workflowID, reactorID, result, waited, 0})
}

var sampleReaction = engine.ReactionEvent{
	WorkflowID: "hall",
	RunID:      "run1",
	ReactionID: "re1",
	ReactorID:  "reactor_0",
	Entity:     "porch",
	Type:       "light",
	Action:     "on",
	Data:       map[string]any{"brightness": 80},
	Context:    "ctx-1",
}

// ─── Egress ─────────────────────────────────────────────────────────────

func TestMQTTDispatcher(t *testing.T) {
	pub := &mockPublisher{}
	d := NewMQTTDispatcher(pub)
	ctx := context.Background()

	if err := d.DispatchReaction(ctx, sampleReaction); err != nil {
		t.Fatalf("DispatchReaction: %v", err)
	}
	if err := d.ResetWorkflow(ctx, "hall"); err != nil {
		t.Fatalf("ResetWorkflow: %v", err)
	}

	if len(pub.msgs) != 2 {
		t.Fatalf("published = %d, want 2", len(pub.msgs))
	}
	if pub.msgs[0].topic != "react/reaction/light/porch" {
		t.Errorf("reaction topic = %q", pub.msgs[0].topic)
	}
	var msg map[string]any
	if err := json.Unmarshal(pub.msgs[0].payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg["action"] != "on" || msg["reactor_id"] != "reactor_0" || msg["context"] != "ctx-1" {
		t.Errorf("payload = %v", msg)
	}
	if pub.msgs[1].topic != "react/workflow/hall/reset" {
		t.Errorf("reset topic = %q", pub.msgs[1].topic)
	}
}

func TestMQTTDispatcher_PublishError(t *testing.T) {
	d := NewMQTTDispatcher(&mockPublisher{err: mqtt.ErrNotConnected})

	err := d.DispatchReaction(context.Background(), sampleReaction)
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}
}

func TestHubDispatcher(t *testing.T) {
	hub := &mockHub{}
	d := NewHubDispatcher(hub)

	d.DispatchReaction(context.Background(), sampleReaction) //nolint:errcheck // never fails
	d.ResetWorkflow(context.Background(), "hall")            //nolint:errcheck // never fails

	got := hub.channels()
	if len(got) != 2 || got[0] != ChannelReactionDispatched || got[1] != ChannelWorkflowReset {
		t.Errorf("channels = %v", got)
	}
}

func TestFanout_CallsEveryDispatcher(t *testing.T) {
	pub := &mockPublisher{}
	hub := &mockHub{}
	f := Fanout{failingDispatcher{}, NewMQTTDispatcher(pub), nil, NewHubDispatcher(hub)}

	err := f.DispatchReaction(context.Background(), sampleReaction)
	if err == nil {
		t.Error("expected the failing dispatcher's error")
	}
	if len(pub.msgs) != 1 || len(hub.msgs) != 1 {
		t.Errorf("published=%d broadcast=%d, want 1 each", len(pub.msgs), len(hub.msgs))
	}

	if err := f.ResetWorkflow(context.Background(), "hall"); err == nil {
		t.Error("expected reset error")
	}
	if len(pub.msgs) != 2 || len(hub.msgs) != 2 {
		t.Errorf("after reset published=%d broadcast=%d", len(pub.msgs), len(hub.msgs))
	}

	if err := (Fanout{NewHubDispatcher(hub)}).DispatchReaction(context.Background(), sampleReaction); err != nil {
		t.Errorf("all succeeded, error = %v", err)
	}
}

func TestLoopback(t *testing.T) {
	h := &recordingHandler{}
	l := NewLoopback()
	ctx := context.Background()

	// Unbound loopback ignores everything.
	if err := l.DispatchReaction(ctx, engine.ReactionEvent{Type: LoopbackType}); err != nil {
		t.Fatalf("unbound: %v", err)
	}

	l.Bind(h)
	l.DispatchReaction(ctx, sampleReaction) //nolint:errcheck // never fails
	if len(h.events) != 0 {
		t.Errorf("non-react reaction looped back: %+v", h.events)
	}

	ev := sampleReaction
	ev.Type = LoopbackType
	ev.Entity = "next_step"
	l.DispatchReaction(ctx, ev) //nolint:errcheck // never fails
	if len(h.events) != 1 {
		t.Fatalf("looped back = %d, want 1", len(h.events))
	}
	got := h.events[0]
	if got.Entity != "next_step" || got.Type != LoopbackType || got.Action != "on" || got.Context != "ctx-1" {
		t.Errorf("action event = %+v", got)
	}
}

func TestLoopback_ChainsWorkflows(t *testing.T) {
	first, problems := workflow.Parse("first", map[string]any{
		"actor":   map[string]any{"entity": "button", "type": "button"},
		"reactor": map[string]any{"entity": "step", "type": LoopbackType, "action": "go"},
	})
	if len(problems) > 0 {
		t.Fatalf("parse first: %v", problems)
	}
	second, problems := workflow.Parse("second", map[string]any{
		"mode":    "restart",
		"actor":   map[string]any{"entity": "step", "type": LoopbackType},
		"reactor": map[string]any{"entity": "lamp", "type": "light", "action": "{{ event.action }}"},
	})
	if len(problems) > 0 {
		t.Fatalf("parse second: %v", problems)
	}

	pub := &mockPublisher{}
	loop := NewLoopback()
	rt := engine.New(engine.Options{Dispatcher: Fanout{NewMQTTDispatcher(pub), loop}})
	loop.Bind(rt)
	rt.Load([]*workflow.Workflow{first, second})

	rt.HandleAction(context.Background(), engine.ActionEvent{Entity: "button", Type: "button", Action: "press"})

	if len(pub.msgs) != 2 {
		t.Fatalf("published = %d, want 2", len(pub.msgs))
	}
	if pub.msgs[0].topic != "react/reaction/react/step" || pub.msgs[1].topic != "react/reaction/light/lamp" {
		t.Errorf("topics = %q, %q", pub.msgs[0].topic, pub.msgs[1].topic)
	}
}

// ─── Ingress ────────────────────────────────────────────────────────────

func TestIngress(t *testing.T) {
	sub := &mockSubscriber{}
	poster := &inlinePoster{}
	h := &recordingHandler{}
	states := state.NewStore()
	in := NewIngress(sub, poster, h, states, 1)

	if err := in.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	actions := sub.handlers["react/action/+/+"]
	statesHandler := sub.handlers["react/state/+"]
	if actions == nil || statesHandler == nil {
		t.Fatalf("subscriptions = %v", sub.handlers)
	}

	if err := actions("react/action/light/porch", []byte(`{"action":"on","data":{"level":3},"context":"c1"}`)); err != nil {
		t.Fatalf("action handler: %v", err)
	}
	if err := actions("react/action/button/hall", nil); err != nil {
		t.Fatalf("empty action: %v", err)
	}
	if len(h.events) != 2 {
		t.Fatalf("events = %d, want 2", len(h.events))
	}
	if ev := h.events[0]; ev.Entity != "porch" || ev.Type != "light" || ev.Action != "on" || ev.Context != "c1" {
		t.Errorf("event = %+v", ev)
	}
	if ev := h.events[1]; ev.Entity != "hall" || ev.Action != "" {
		t.Errorf("empty event = %+v", ev)
	}

	if err := actions("react/action/light/porch", []byte(`not json`)); err == nil {
		t.Error("malformed action should error")
	}
	if err := actions("react/other", nil); err == nil {
		t.Error("bad topic should error")
	}

	tests := []struct {
		payload string
		want    any
	}{
		{`{"state":"on","attributes":{"brightness":10}}`, "on"},
		{`"off"`, "off"},
		{`21.5`, 21.5},
		{`plain text`, "plain text"},
	}
	for _, tt := range tests {
		if err := statesHandler("react/state/porch", []byte(tt.payload)); err != nil {
			t.Fatalf("state handler: %v", err)
		}
		if got, _ := states.State("porch"); got != tt.want {
			t.Errorf("payload %s: state = %v, want %v", tt.payload, got, tt.want)
		}
	}
}

func TestIngress_LoopStopped(t *testing.T) {
	sub := &mockSubscriber{}
	h := &recordingHandler{}
	in := NewIngress(sub, &inlinePoster{stopped: true}, h, state.NewStore(), 0)
	if err := in.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := sub.handlers["react/action/+/+"]("react/action/light/porch", []byte(`{"action":"on"}`)); err != nil {
		t.Errorf("dropped action should not error: %v", err)
	}
	if len(h.events) != 0 {
		t.Error("action delivered after loop stopped")
	}
}

func TestIngress_SubscribeError(t *testing.T) {
	in := NewIngress(&mockSubscriber{err: mqtt.ErrNotConnected}, &inlinePoster{}, &recordingHandler{}, state.NewStore(), 1)
	if err := in.Start(); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start = %v, want ErrNotConnected", err)
	}
}

// ─── Relays ─────────────────────────────────────────────────────────────

func delayedRuntime(t *testing.T) (*engine.ReactRuntime, *manualTimer) {
	t.Helper()
	wf, problems := workflow.Parse("hall", map[string]any{
		"actor": map[string]any{"entity": "motion", "type": "sensor"},
		"reactor": []any{
			map[string]any{"entity": "porch", "type": "light", "wait": map[string]any{"delay": 30}},
			map[string]any{"entity": "hall", "type": "light"},
		},
	})
	if len(problems) > 0 {
		t.Fatalf("parse: %v", problems)
	}
	timer := &manualTimer{}
	rt := engine.New(engine.Options{Timer: timer, Now: func() time.Time { return relayNow }})
	rt.Load([]*workflow.Workflow{wf})
	return rt, timer
}

var relayNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type manualTimer struct {
	fns []func()
}

func (m *manualTimer) At(_ time.Time, fn func()) func() {
	m.fns = append(m.fns, fn)
	return func() {}
}

func (m *manualTimer) fireAll() {
	fns := m.fns
	m.fns = nil
	for _, fn := range fns {
		fn()
	}
}

func TestRelay(t *testing.T) {
	rt, timer := delayedRuntime(t)
	hub := &mockHub{}
	NewRelay(hub).Attach(rt)

	rt.HandleAction(context.Background(), engine.ActionEvent{Entity: "motion", Type: "sensor"})
	timer.fireAll()

	var runAdded, runRemoved, reactionRemoved int
	for _, b := range hub.msgs {
		switch c := b.payload.(type) {
		case engine.RunChange:
			if b.channel != ChannelRunChanged {
				t.Errorf("run change on %s", b.channel)
			}
			switch c.Kind {
			case engine.ChangeAdded:
				runAdded++
			case engine.ChangeRemoved:
				runRemoved++
			}
		case engine.ReactionChange:
			if b.channel != ChannelReactionChanged {
				t.Errorf("reaction change on %s", b.channel)
			}
			if c.Kind == engine.ChangeRemoved {
				reactionRemoved++
			}
		}
	}
	if runAdded != 1 || runRemoved != 1 || reactionRemoved != 2 {
		t.Errorf("run added=%d removed=%d, reactions removed=%d", runAdded, runRemoved, reactionRemoved)
	}
}

func TestTelemetry(t *testing.T) {
	rt, timer := delayedRuntime(t)
	metrics := &mockMetrics{}
	NewTelemetry(metrics, func() time.Time { return relayNow.Add(30 * time.Second) }).Attach(rt)

	rt.HandleAction(context.Background(), engine.ActionEvent{Entity: "motion", Type: "sensor"})
	if len(metrics.calls) != 1 || metrics.calls[0].id != "reactor_1" {
		t.Fatalf("calls before delay = %+v, want the immediate reaction only", metrics.calls)
	}

	timer.fireAll()

	if len(metrics.calls) != 3 {
		t.Fatalf("calls = %+v, want 3", metrics.calls)
	}
	delayed := metrics.calls[1]
	if delayed.kind != "reaction" || delayed.result != "success" || delayed.duration != 30*time.Second {
		t.Errorf("delayed reaction metric = %+v", delayed)
	}
	run := metrics.calls[2]
	if run.kind != "run" || run.workflow != "hall" || run.result != "finished" || run.reactions != 2 {
		t.Errorf("run metric = %+v", run)
	}
}
