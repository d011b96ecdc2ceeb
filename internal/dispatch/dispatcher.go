package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-react/internal/engine"
	"github.com/nerrad567/gray-logic-react/internal/infrastructure/mqtt"
)

// WebSocket channels events are broadcast on.
const (
	ChannelReactionDispatched = "reaction.dispatched"
	ChannelWorkflowReset      = "workflow.reset"
	ChannelRunChanged         = "run.changed"
	ChannelReactionChanged    = "reaction.changed"
)

// LoopbackType is the reaction type re-entered as an action event.
const LoopbackType = "react"

// Publisher is the MQTT surface egress needs.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// Broadcaster is the WebSocket surface egress needs.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// ActionHandler receives looped-back action events.
type ActionHandler interface {
	HandleAction(ctx context.Context, ev engine.ActionEvent) []*engine.WorkflowRun
}

// Logger is the logging surface dispatchers need.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ─── Fanout ─────────────────────────────────────────────────────────────

// Fanout delivers every event to each dispatcher in order. Every
// dispatcher is called even when an earlier one fails; the errors are
// joined.
type Fanout []engine.Dispatcher

// DispatchReaction implements engine.Dispatcher.
func (f Fanout) DispatchReaction(ctx context.Context, ev engine.ReactionEvent) error {
	var errs []error
	for _, d := range f {
		if d == nil {
			continue
		}
		if err := d.DispatchReaction(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResetWorkflow implements engine.Dispatcher.
func (f Fanout) ResetWorkflow(ctx context.Context, workflowID string) error {
	var errs []error
	for _, d := range f {
		if d == nil {
			continue
		}
		if err := d.ResetWorkflow(ctx, workflowID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ─── MQTT ───────────────────────────────────────────────────────────────

// reactionMessage is the MQTT payload of a dispatched reaction.
type reactionMessage struct {
	WorkflowID string         `json:"workflow_id"`
	RunID      string         `json:"run_id"`
	ReactionID string         `json:"reaction_id"`
	ReactorID  string         `json:"reactor_id"`
	Action     string         `json:"action,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Context    string         `json:"context,omitempty"`
}

// ResetMessage is the payload of a workflow reset on MQTT and WebSocket.
type ResetMessage struct {
	WorkflowID string `json:"workflow_id"`
}

// MQTTDispatcher publishes reactions and resets to the broker.
type MQTTDispatcher struct {
	pub    Publisher
	topics mqtt.Topics
}

// NewMQTTDispatcher creates a dispatcher publishing through pub.
func NewMQTTDispatcher(pub Publisher) *MQTTDispatcher {
	return &MQTTDispatcher{pub: pub}
}

// DispatchReaction publishes ev on react/reaction/{type}/{entity}.
func (d *MQTTDispatcher) DispatchReaction(_ context.Context, ev engine.ReactionEvent) error {
	msg := reactionMessage{
		WorkflowID: ev.WorkflowID,
		RunID:      ev.RunID,
		ReactionID: ev.ReactionID,
		ReactorID:  ev.ReactorID,
		Action:     ev.Action,
		Data:       ev.Data,
		Context:    ev.Context,
	}
	if err := d.pub.PublishJSON(d.topics.Reaction(ev.Type, ev.Entity), msg, false); err != nil {
		return fmt.Errorf("publishing reaction: %w", err)
	}
	return nil
}

// ResetWorkflow publishes on react/workflow/{id}/reset.
func (d *MQTTDispatcher) ResetWorkflow(_ context.Context, workflowID string) error {
	if err := d.pub.PublishJSON(d.topics.WorkflowReset(workflowID), ResetMessage{WorkflowID: workflowID}, false); err != nil {
		return fmt.Errorf("publishing workflow reset: %w", err)
	}
	return nil
}

// ─── WebSocket ──────────────────────────────────────────────────────────

// HubDispatcher broadcasts reactions and resets to WebSocket clients.
type HubDispatcher struct {
	hub Broadcaster
}

// NewHubDispatcher creates a dispatcher broadcasting through hub.
func NewHubDispatcher(hub Broadcaster) *HubDispatcher {
	return &HubDispatcher{hub: hub}
}

// DispatchReaction broadcasts ev on the reaction.dispatched channel.
func (d *HubDispatcher) DispatchReaction(_ context.Context, ev engine.ReactionEvent) error {
	d.hub.Broadcast(ChannelReactionDispatched, ev)
	return nil
}

// ResetWorkflow broadcasts on the workflow.reset channel.
func (d *HubDispatcher) ResetWorkflow(_ context.Context, workflowID string) error {
	d.hub.Broadcast(ChannelWorkflowReset, ResetMessage{WorkflowID: workflowID})
	return nil
}

// ─── Loopback ───────────────────────────────────────────────────────────

// Loopback re-enters reactions of type "react" as action events, passing
// the dispatch context along so the engine's recursion guard sees the
// whole chain. It must be bound to the runtime before the first dispatch.
type Loopback struct {
	handler ActionHandler
	logger  Logger
}

// NewLoopback creates an unbound loopback.
func NewLoopback() *Loopback {
	return &Loopback{logger: noopLogger{}}
}

// Bind sets the handler looped-back actions are delivered to.
func (l *Loopback) Bind(h ActionHandler) {
	l.handler = h
}

// SetLogger sets the logger.
func (l *Loopback) SetLogger(logger Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// DispatchReaction delivers ev to the handler when its type is "react".
func (l *Loopback) DispatchReaction(ctx context.Context, ev engine.ReactionEvent) error {
	if ev.Type != LoopbackType || l.handler == nil {
		return nil
	}
	runs := l.handler.HandleAction(ctx, engine.ActionEvent{
		Entity:  ev.Entity,
		Type:    ev.Type,
		Action:  ev.Action,
		Data:    ev.Data,
		Context: ev.Context,
	})
	l.logger.Debug("reaction looped back",
		"workflow_id", ev.WorkflowID, "entity", ev.Entity, "runs", len(runs))
	return nil
}

// ResetWorkflow is a no-op: resets already act on the engine directly.
func (l *Loopback) ResetWorkflow(context.Context, string) error {
	return nil
}
