// Package influxdb writes armband event metrics to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health checks.
//
// Two measurements are written:
//   - armband_events: one point per connect, disconnect and command outcome,
//     produced by Recorder, which plugs into the hub as a recorder
//   - hub_stats: periodic connected/unlocked/streaming counts
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics are optional
//	}
//	defer client.Close()
//
//	rec := influxdb.NewRecorder(client, cfg.Hub.ID)
//
// # Error Handling
//
// Writes never block or return errors. Batch failures are wrapped in
// ErrWriteFailed and passed to the SetOnError callback.
package influxdb
