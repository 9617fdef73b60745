// Package mqtt provides MQTT client connectivity for the lumen backend.
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
// MQTT is the alternative ingest path for controllers that prefer a
// persistent connection over HTTP polling. Controllers publish sensor
// pushes to lumen/device/{id}/telemetry; the backend echoes the
// committed state on lumen/device/{id}/state (retained) so a
// reconnecting controller immediately learns the authoritative light
// state and config.
//
//	ESP32 controllers ↔ MQTT broker ↔ lumen backend
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceTelemetry(), 1,
//	    func(topic string, payload []byte) error {
//	        // feed the reconciler
//	        return nil
//	    })
package mqtt
