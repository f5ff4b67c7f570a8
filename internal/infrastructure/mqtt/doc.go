// Package mqtt provides MQTT client connectivity for Doorlink Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Doorlink uses MQTT as the transport between the Core and the door
// hardware. Each door owns a topic prefix and reports on five channels
// beneath it; the Core commands the lock on a single control channel.
//
//	Doorlink Core ↔ MQTT Broker ↔ Door Locks
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all door state reports
//	err = client.Subscribe(mqtt.Topics{}.AllStates(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Command a lock
//	topic := mqtt.Topics{}.Control("frontdoor")
//	client.Publish(topic, []byte(`{"action":"lock"}`), 1, true)
package mqtt
