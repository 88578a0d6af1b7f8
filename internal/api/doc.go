// Package api implements the HTTP REST API and WebSocket server for Armlink.
//
// This package provides:
//   - REST endpoints for armband snapshots, per-device EMG and session history
//   - Command endpoints (lock, unlock, vibrate, streaming) forwarded to the hub
//   - A WebSocket stream of lifecycle events and periodic armband frames
//   - Client-key → JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API is a read/command surface over *hub.Hub. Reads take one hub
// snapshot per request, so a response never mixes two registry states.
// Commands return 404 for unknown handles and 502 when the driver bridge
// could not take the command.
//
// The WebSocket hub also acts as a hub.Recorder: connect, disconnect and
// command outcomes are broadcast on the armband.* channels without polling.
//
// # Channels
//
//	armband.connected     record of the new device
//	armband.disconnected  last record of the removed device
//	armband.command       handle, command and outcome
//	armband.frame         hub.Frame for every connected device, every frame_interval
package api
