// Package workflow defines the configuration model: workflows, actors,
// reactors and their waits.
//
// Workflows are loaded from a YAML file with two top-level maps:
//
//	stencils:
//	  motion_light:
//	    mode: restart
//	    reactor:
//	      - id: off
//	        wait: { delay: { minutes: 5 } }
//	workflows:
//	  hallway:
//	    stencil: motion_light
//	    actor:   { entity: motion.hallway, type: binary_sensor, action: on }
//	    reactor: [ { id: off, entity: light.hallway, type: light, action: off } ]
//
// A stencil is merged under the workflow with Merge. The result is parsed
// into typed structs and validated; problems are collected per workflow
// and an invalid workflow is skipped while the others load.
package workflow
