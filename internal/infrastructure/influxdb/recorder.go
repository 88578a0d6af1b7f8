package influxdb

import (
	"strconv"
	"time"

	"github.com/nerrad567/armlink/internal/armband"
)

// Event tag values.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventCommand      = "command"
)

// Recorder turns hub lifecycle and command outcomes into armband_events
// points. It satisfies hub.Recorder.
type Recorder struct {
	w     PointWriter
	hubID string
	now   func() time.Time
}

// NewRecorder creates a Recorder that writes through w, tagging every
// point with hubID.
func NewRecorder(w PointWriter, hubID string) *Recorder {
	return &Recorder{
		w:     w,
		hubID: hubID,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *Recorder) tags(h armband.Handle, event string) map[string]string {
	return map[string]string{
		"hub":    r.hubID,
		"handle": strconv.Itoa(int(h)),
		"event":  event,
	}
}

// RecordConnect writes a connected event carrying the device identity.
func (r *Recorder) RecordConnect(rec armband.Record) {
	tags := r.tags(rec.Handle, EventConnected)
	tags["arm"] = string(rec.Arm)
	tags["x_direction"] = string(rec.XDirection)

	r.w.WritePointWithTime(MeasurementEvents, tags,
		map[string]interface{}{"count": 1},
		r.now(),
	)
}

// RecordDisconnect writes a disconnected event with the session length.
func (r *Recorder) RecordDisconnect(rec armband.Record) {
	now := r.now()
	tags := r.tags(rec.Handle, EventDisconnected)
	tags["arm"] = string(rec.Arm)

	fields := map[string]interface{}{"count": 1}
	if !rec.ConnectedAt.IsZero() {
		fields["session_seconds"] = now.Sub(rec.ConnectedAt).Seconds()
	}
	r.w.WritePointWithTime(MeasurementEvents, tags, fields, now)
}

// RecordCommand writes a command event tagged with the command kind.
func (r *Recorder) RecordCommand(h armband.Handle, cmd armband.Command, ok bool) {
	tags := r.tags(h, EventCommand)
	tags["command"] = string(cmd.Kind)

	r.w.WritePointWithTime(MeasurementEvents, tags,
		map[string]interface{}{
			"ok":     ok,
			"detail": cmd.String(),
		},
		r.now(),
	)
}
