package hub

import "github.com/nerrad567/armlink/internal/armband"

// Slot is one position of a multi-device query result.
// Present is false when no device occupies the position; Value is then the
// zero value and must not be read as a device reading.
type Slot[T any] struct {
	Value   T    `json:"value"`
	Present bool `json:"present"`
}

// Values flattens slots into plain values, substituting absent for empty positions.
func Values[T any](slots []Slot[T], absent T) []T {
	out := make([]T, len(slots))
	for i, s := range slots {
		if s.Present {
			out[i] = s.Value
		} else {
			out[i] = absent
		}
	}
	return out
}

// normalizeCount maps a requested device count to a usable one.
// Zero and negative counts mean 1.
func normalizeCount(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// snapshot returns copies of all records in connection order.
func (h *Hub) snapshot() []armband.Record {
	h.lifeMu.RLock()
	defer h.lifeMu.RUnlock()

	if h.closed {
		return nil
	}
	return h.registry.Snapshot()
}

// project builds an n-slot result from the first n records.
func project[T any](recs []armband.Record, n int, fn func(*armband.Record) T) []Slot[T] {
	n = normalizeCount(n)
	out := make([]Slot[T], n)
	for i := 0; i < n && i < len(recs); i++ {
		out[i] = Slot[T]{Value: fn(&recs[i]), Present: true}
	}
	return out
}

func armOf(r *armband.Record) armband.Arm               { return r.Arm }
func poseOf(r *armband.Record) armband.Pose             { return r.Pose }
func handleOf(r *armband.Record) armband.Handle         { return r.Handle }
func connectedOf(r *armband.Record) bool                { return r.Connected }
func unlockedOf(r *armband.Record) bool                 { return r.Unlocked }
func xDirectionOf(r *armband.Record) armband.XDirection { return r.XDirection }
func gyroXYZOf(r *armband.Record) [3]float32            { return r.Gyroscope.XYZ() }
func accelXYZOf(r *armband.Record) [3]float32           { return r.Accelerometer.XYZ() }
func orientWXYZOf(r *armband.Record) [4]float32         { return r.Orientation.WXYZ() }
func gyroMagOf(r *armband.Record) float32               { return r.Gyroscope.Magnitude() }
func accelMagOf(r *armband.Record) float32              { return r.Accelerometer.Magnitude() }
func orientMagOf(r *armband.Record) float32             { return r.Orientation.Magnitude() }

// Arms returns the arm of the first n devices.
func (h *Hub) Arms(n int) []Slot[armband.Arm] {
	return project(h.snapshot(), n, armOf)
}

// Poses returns the latest pose of the first n devices.
func (h *Hub) Poses(n int) []Slot[armband.Pose] {
	return project(h.snapshot(), n, poseOf)
}

// Handles returns the handles of the first n devices.
func (h *Hub) Handles(n int) []Slot[armband.Handle] {
	return project(h.snapshot(), n, handleOf)
}

// Connected returns the connection flag of the first n devices.
func (h *Hub) Connected(n int) []Slot[bool] {
	return project(h.snapshot(), n, connectedOf)
}

// Unlocked returns the lock state of the first n devices.
func (h *Hub) Unlocked(n int) []Slot[bool] {
	return project(h.snapshot(), n, unlockedOf)
}

// XDirections returns the x-direction of the first n devices.
func (h *Hub) XDirections(n int) []Slot[armband.XDirection] {
	return project(h.snapshot(), n, xDirectionOf)
}

// GyroscopeXYZ returns one X/Y/Z gyroscope row per device, in deg/s.
func (h *Hub) GyroscopeXYZ(n int) []Slot[[3]float32] {
	return project(h.snapshot(), n, gyroXYZOf)
}

// AccelerometerXYZ returns one X/Y/Z accelerometer row per device, in g.
func (h *Hub) AccelerometerXYZ(n int) []Slot[[3]float32] {
	return project(h.snapshot(), n, accelXYZOf)
}

// OrientationWXYZ returns one W/X/Y/Z quaternion row per device.
func (h *Hub) OrientationWXYZ(n int) []Slot[[4]float32] {
	return project(h.snapshot(), n, orientWXYZOf)
}

// GyroscopeMagnitude returns the norm of each device's gyroscope vector.
func (h *Hub) GyroscopeMagnitude(n int) []Slot[float32] {
	return project(h.snapshot(), n, gyroMagOf)
}

// AccelerometerMagnitude returns the norm of each device's accelerometer vector.
func (h *Hub) AccelerometerMagnitude(n int) []Slot[float32] {
	return project(h.snapshot(), n, accelMagOf)
}

// OrientationMagnitude returns the norm of each device's orientation quaternion.
func (h *Hub) OrientationMagnitude(n int) []Slot[float32] {
	return project(h.snapshot(), n, orientMagOf)
}

// Frame holds every multi-device query result built from a single snapshot.
type Frame struct {
	Handles                []Slot[armband.Handle]     `json:"handles"`
	Arms                   []Slot[armband.Arm]        `json:"arms"`
	XDirections            []Slot[armband.XDirection] `json:"x_directions"`
	Connected              []Slot[bool]               `json:"connected"`
	Unlocked               []Slot[bool]               `json:"unlocked"`
	Poses                  []Slot[armband.Pose]       `json:"poses"`
	GyroscopeXYZ           []Slot[[3]float32]         `json:"gyroscope_xyz"`
	AccelerometerXYZ       []Slot[[3]float32]         `json:"accelerometer_xyz"`
	OrientationWXYZ        []Slot[[4]float32]         `json:"orientation_wxyz"`
	GyroscopeMagnitude     []Slot[float32]            `json:"gyroscope_magnitude"`
	AccelerometerMagnitude []Slot[float32]            `json:"accelerometer_magnitude"`
	OrientationMagnitude   []Slot[float32]            `json:"orientation_magnitude"`
}

// Frame returns every query for the first n devices, all from one snapshot.
func (h *Hub) Frame(n int) Frame {
	recs := h.snapshot()
	return Frame{
		Handles:                project(recs, n, handleOf),
		Arms:                   project(recs, n, armOf),
		XDirections:            project(recs, n, xDirectionOf),
		Connected:              project(recs, n, connectedOf),
		Unlocked:               project(recs, n, unlockedOf),
		Poses:                  project(recs, n, poseOf),
		GyroscopeXYZ:           project(recs, n, gyroXYZOf),
		AccelerometerXYZ:       project(recs, n, accelXYZOf),
		OrientationWXYZ:        project(recs, n, orientWXYZOf),
		GyroscopeMagnitude:     project(recs, n, gyroMagOf),
		AccelerometerMagnitude: project(recs, n, accelMagOf),
		OrientationMagnitude:   project(recs, n, orientMagOf),
	}
}

// EMGData returns the last EMG sample received from any device.
// It is not addressed by handle; with more than one device streaming the
// readings interleave. Use EMGDataFor for a specific device.
func (h *Hub) EMGData() []int {
	h.emgMu.RLock()
	defer h.emgMu.RUnlock()

	out := make([]int, len(h.emg))
	copy(out, h.emg)
	return out
}

// EMGDataFor returns the last EMG sample of one device.
func (h *Hub) EMGDataFor(handle armband.Handle) ([]int, bool) {
	rec, ok := h.Device(handle)
	if !ok {
		return nil, false
	}
	return rec.EMG, true
}

// Devices returns copies of every connected device's record in connection order.
// After ShutdownAll it returns an empty slice.
func (h *Hub) Devices() []armband.Record {
	recs := h.snapshot()
	if recs == nil {
		return []armband.Record{}
	}
	return recs
}

// Device returns a copy of one device's record.
func (h *Hub) Device(handle armband.Handle) (armband.Record, bool) {
	h.lifeMu.RLock()
	defer h.lifeMu.RUnlock()

	if h.closed {
		return armband.Record{}, false
	}
	return h.registry.Get(handle)
}

// Count returns the number of connected devices.
func (h *Hub) Count() int {
	h.lifeMu.RLock()
	defer h.lifeMu.RUnlock()

	if h.closed {
		return 0
	}
	return h.registry.Len()
}

// Stats summarises the connected devices.
type Stats struct {
	Connected int                 `json:"connected"`
	Unlocked  int                 `json:"unlocked"`
	Streaming int                 `json:"streaming"`
	ByArm     map[armband.Arm]int `json:"by_arm"`
	Closed    bool                `json:"closed"`
}

// Stats returns counts over one snapshot of the registry.
func (h *Hub) Stats() Stats {
	recs := h.snapshot()
	stats := Stats{
		Connected: len(recs),
		ByArm:     make(map[armband.Arm]int),
		Closed:    h.isClosed(),
	}
	for _, r := range recs {
		if r.Unlocked {
			stats.Unlocked++
		}
		if r.Streaming {
			stats.Streaming++
		}
		stats.ByArm[r.Arm]++
	}
	return stats
}
