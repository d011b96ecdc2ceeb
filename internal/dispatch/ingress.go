package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-react/internal/engine"
	"github.com/nerrad567/gray-logic-react/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-react/internal/state"
)

// Subscriber is the MQTT surface ingress needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Poster hands work to the event loop.
type Poster interface {
	Post(fn func()) bool
}

// ActionMessage is the payload of react/action/{type}/{entity}.
// An empty payload is an action event with no action.
type ActionMessage struct {
	Action  string         `json:"action"`
	Data    map[string]any `json:"data,omitempty"`
	Context string         `json:"context,omitempty"`
}

// StateMessage is the payload of react/state/{entity}. A payload that is
// not a JSON object is taken as the raw state.
type StateMessage struct {
	State      any            `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Ingress feeds MQTT action and state messages into the engine.
type Ingress struct {
	sub     Subscriber
	loop    Poster
	actions ActionHandler
	states  *state.Store
	qos     byte
	topics  mqtt.Topics
	logger  Logger
}

// NewIngress creates an ingress posting to loop.
func NewIngress(sub Subscriber, loop Poster, actions ActionHandler, states *state.Store, qos byte) *Ingress {
	return &Ingress{
		sub:     sub,
		loop:    loop,
		actions: actions,
		states:  states,
		qos:     qos,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger.
func (in *Ingress) SetLogger(logger Logger) {
	if logger != nil {
		in.logger = logger
	}
}

// Start subscribes to the action and state topics.
func (in *Ingress) Start() error {
	if err := in.sub.Subscribe(in.topics.AllActions(), in.qos, in.handleAction); err != nil {
		return fmt.Errorf("subscribing to actions: %w", err)
	}
	if err := in.sub.Subscribe(in.topics.AllStates(), in.qos, in.handleState); err != nil {
		return fmt.Errorf("subscribing to states: %w", err)
	}
	in.logger.Info("mqtt ingress started",
		"actions", in.topics.AllActions(), "states", in.topics.AllStates())
	return nil
}

func (in *Ingress) handleAction(topic string, payload []byte) error {
	entityType, entity, ok := in.topics.ParseAction(topic)
	if !ok {
		return fmt.Errorf("unexpected action topic %q", topic)
	}

	var msg ActionMessage
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decoding action on %s: %w", topic, err)
		}
	}

	ev := engine.ActionEvent{
		Entity:  entity,
		Type:    entityType,
		Action:  msg.Action,
		Data:    msg.Data,
		Context: msg.Context,
	}
	if !in.loop.Post(func() { in.actions.HandleAction(context.Background(), ev) }) {
		in.logger.Warn("event loop stopped, action dropped", "entity", entity, "action", msg.Action)
	}
	return nil
}

func (in *Ingress) handleState(topic string, payload []byte) error {
	entity, ok := in.topics.ParseState(topic)
	if !ok {
		return fmt.Errorf("unexpected state topic %q", topic)
	}

	msg := decodeState(payload)
	if !in.loop.Post(func() { in.states.Set(entity, msg.State, msg.Attributes) }) {
		in.logger.Warn("event loop stopped, state dropped", "entity", entity)
	}
	return nil
}

// decodeState accepts {"state": ..., "attributes": {...}}, any other JSON
// value, or plain text.
func decodeState(payload []byte) StateMessage {
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err == nil {
		if _, has := obj["state"]; has {
			var msg StateMessage
			if err := json.Unmarshal(payload, &msg); err == nil {
				return msg
			}
		}
		return StateMessage{State: obj}
	}

	var v any
	if err := json.Unmarshal(payload, &v); err == nil {
		return StateMessage{State: v}
	}
	return StateMessage{State: string(payload)}
}
