// Package hub connects the armband driver's event feeds to synchronous callers.
//
// A Hub owns one armband.Registry and plays three roles around it:
//
//	┌──────────────┐  connect/disconnect  ┌───────────────┐
//	│ DiscoveryFeed│─────────────────────►│               │
//	└──────────────┘                      │  Event Intake │──► Registry
//	┌──────────────┐  typed samples       │               │
//	│  SampleFeed  │─────────────────────►│               │
//	└──────────────┘                      └───────────────┘
//	                                             │
//	caller ──► Snapshot queries ◄────────────────┘ (one copy per call)
//	caller ──► Command dispatcher ──► CommandSink
//
// Intake runs on the transport's goroutines. Queries and commands run on the
// caller's goroutine and never wait on the transport. Every multi-device
// query copies the registry once and builds its result from that copy, so the
// rows of one result always describe the same devices in the same order.
//
// Nothing exported here returns an error to the caller once the Hub is
// running: unknown handles yield false, missing devices yield absent slots,
// and an invalid count falls back to 1.
//
// After ShutdownAll the Hub is terminal. Commands return false and queries
// return absent slots.
package hub
