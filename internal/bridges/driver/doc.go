// Package driver connects the hub to the armband driver over MQTT.
//
// The driver process owns the radio link to the devices. It announces
// connects and disconnects on armlink/discovery, streams telemetry on
// armlink/sample/{handle}, and listens for commands on
// armlink/command/{handle}.
//
// Bridge implements the three hub ports on top of that topic tree:
//
//	            MQTT                          Bridge                    hub.Hub
//	armlink/discovery ───► handleDiscovery ─► queue ─► worker ─► HandleConnected/Disconnected
//	armlink/sample/N  ───► sampleHandler(N) ─────────────────────► sample callback
//	armlink/command/N ◄─── Send ◄──────────────────────────────── dispatch
//
// Discovery events are queued and delivered from a worker goroutine.
// The hub subscribes to a device's samples while handling its connect,
// and a subscribe issued from inside an MQTT delivery callback would wait
// on the very goroutine that has to process the acknowledgement.
//
// Sample callbacks are looked up per message, so once UnsubscribeSamples
// returns no further sample reaches the old callback.
package driver
