// Package templating evaluates the templated values found in workflow
// configuration.
//
// A template is a string containing {{ expression }} blocks. Expressions
// are expr-lang programs evaluated against the caller's variables plus:
//
//	states                 map of entity id to current state
//	is_state(entity, v)    true when the entity's state equals v
//	state_attr(entity, a)  attribute a of the entity, or nil
//
// Examples:
//
//	{{ states.hall_motion == "on" and is_state("sun", "below_horizon") }}
//	Temperature is {{ states["sensor.outside"] }} degrees
//
// Dependencies reports which entities and variables a template reads, so
// live trackers subscribe only to what can change their value.
package templating
