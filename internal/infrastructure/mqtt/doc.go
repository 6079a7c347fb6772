// Package mqtt provides MQTT client connectivity for VoltGrid Core.
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
// VoltGrid uses MQTT as the internal message bus connecting the Core
// to driver bridges (SunSpec, Modbus, OCPP, etc.). The broker decouples
// Core from protocol-specific implementations.
//
//	VoltGrid Core <-> MQTT Broker <-> Driver Bridges
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
//	// Subscribe to all driver state updates
//	err = client.Subscribe(mqtt.Topics{}.AllDriverStates(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish command
//	topic := mqtt.Topics{}.DriverCommand("sunspec", "inverter-7")
//	client.Publish(topic, []byte(`{"close_dc":true}`), 1, false)
package mqtt
