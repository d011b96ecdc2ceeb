// Package mqtt provides MQTT connectivity for the react engine.
//
// MQTT is both the engine's ingress and egress bus:
//
//	sensors / bridges ──► react/action/{type}/{entity} ──► engine actors
//	state publishers  ──► react/state/{entity}         ──► template state
//	engine reactors   ──► react/reaction/{type}/{entity}
//	reset_workflow    ──► react/workflow/{id}/reset
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and payload validation
//   - Wildcard subscriptions restored after reconnect
//   - Last Will and Testament on react/system/status
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllActions(), 1,
//	    func(topic string, payload []byte) error {
//	        entityType, entity, _ := mqtt.Topics{}.ParseAction(topic)
//	        log.Printf("action on %s/%s: %s", entityType, entity, payload)
//	        return nil
//	    })
package mqtt
