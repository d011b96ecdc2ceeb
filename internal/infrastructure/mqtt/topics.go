package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every react topic.
const TopicPrefix = "react"

// Topics provides builders and parsers for react MQTT topics.
//
// Ingress (subscribed by the engine):
//
//	react/action/{type}/{entity}   action events that may trigger actors
//	react/state/{entity}           entity state updates feeding templates
//
// Egress (published by the engine):
//
//	react/reaction/{type}/{entity} dispatched reactions
//	react/workflow/{id}/reset      workflow reset broadcasts
//	react/system/status            online/offline status (retained, LWT)
type Topics struct{}

// Action returns the topic an action event for entity is published on.
//
// Example: react/action/binary_sensor/hall_motion
func (Topics) Action(entityType, entity string) string {
	return fmt.Sprintf("%s/action/%s/%s", TopicPrefix, entityType, entity)
}

// AllActions returns the wildcard subscription for every action event.
func (Topics) AllActions() string {
	return TopicPrefix + "/action/+/+"
}

// State returns the topic carrying the current state of entity.
//
// Example: react/state/light.kitchen
func (Topics) State(entity string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, entity)
}

// AllStates returns the wildcard subscription for every entity state.
func (Topics) AllStates() string {
	return TopicPrefix + "/state/+"
}

// Reaction returns the topic a dispatched reaction is published on.
//
// Example: react/reaction/light/porch
func (Topics) Reaction(entityType, entity string) string {
	return fmt.Sprintf("%s/reaction/%s/%s", TopicPrefix, entityType, entity)
}

// WorkflowReset returns the topic for a workflow reset broadcast.
func (Topics) WorkflowReset(workflowID string) string {
	return fmt.Sprintf("%s/workflow/%s/reset", TopicPrefix, workflowID)
}

// SystemStatus returns the retained engine status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// ParseAction extracts type and entity from an action topic.
func (Topics) ParseAction(topic string) (entityType, entity string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "action" {
		return "", "", false
	}
	if parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[2], parts[3], true
}

// ParseState extracts the entity id from a state topic.
func (Topics) ParseState(topic string) (entity string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != TopicPrefix || parts[1] != "state" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
