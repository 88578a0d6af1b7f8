package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	// MeasurementEvents holds one point per connect, disconnect and command.
	MeasurementEvents = "armband_events"

	// MeasurementHubStats holds periodic registry counts.
	MeasurementHubStats = "hub_stats"
)

// PointWriter is the write surface used by Recorder.
// *Client implements it.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time)
}

// WritePoint writes a point stamped with the current time.
// The write is non-blocking and dropped when the client is not connected.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}

// WriteHubStats records the registry counts of one hub instance.
func (c *Client) WriteHubStats(hubID string, connected, unlocked, streaming int) {
	c.WritePoint(MeasurementHubStats,
		map[string]string{"hub": hubID},
		map[string]interface{}{
			"connected": connected,
			"unlocked":  unlocked,
			"streaming": streaming,
		},
	)
}
