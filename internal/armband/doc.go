// Package armband provides the device model and Device Registry for Armlink.
//
// An armband is a wireless biosignal sensor worn on the forearm. While it is
// connected it streams pose, orientation, inertial and EMG samples. This
// package holds the most recent value of each channel per device; it does not
// keep history.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                       Device Registry                        │
//	│                                                              │
//	│  ┌──────────────────┐   ┌──────────────────┐                 │
//	│  │     Registry     │   │      Record      │                 │
//	│  │  (registry.go)   │──▶│    (types.go)    │                 │
//	│  │                  │   │                  │                 │
//	│  │ • Ordered map    │   │ • Identity       │                 │
//	│  │ • Copy-on-read   │   │ • Lock state     │                 │
//	│  │ • Thread safety  │   │ • Sample buffer  │                 │
//	│  └──────────────────┘   └──────────────────┘                 │
//	└──────────────────────────────────────────────────────────────┘
//	            ▲                          │
//	            │ Upsert/Remove/Update     │ Snapshot/Get
//	   Event intake (hub)           Query layer (hub)
//
// # Key Types
//
//   - Handle: opaque per-connection device identifier assigned by the driver
//   - Record: identity, lock state and the latest sample of every channel
//   - Sample: one typed telemetry event delivered by the driver
//   - Command: one outbound request (lock, unlock, vibrate, set streaming)
//
// # Thread Safety
//
// The Registry is safe for concurrent use. Mutations hold an exclusive lock
// for the duration of a whole-field replacement; reads copy records under a
// shared lock, so a reader never observes a half-updated record.
package armband
