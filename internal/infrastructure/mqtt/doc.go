// Package mqtt provides the broker connection between the Armlink hub and the
// armband driver process.
//
// The driver owns the radio and publishes decoded telemetry; the hub consumes
// it and publishes commands back:
//
//	armband driver ↔ MQTT broker ↔ Armlink hub
//
// This package manages:
//   - Connection with auto-reconnect and subscription restore
//   - Publishing with a bounded wait for acknowledgement
//   - Subscriptions with panic-recovering handlers
//   - Last Will and Testament on armlink/system/status
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.Discovery(), 1,
//	    func(topic string, payload []byte) error {
//	        return handleDiscovery(payload)
//	    })
//
// Handlers run on paho's delivery goroutine, one message at a time. A handler
// must not call Subscribe or Unsubscribe itself: both wait for the broker's
// acknowledgement, which is delivered on the same goroutine.
package mqtt
