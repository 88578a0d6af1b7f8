package armband

import (
	"math"
	"time"
)

// DefaultSensors is the number of EMG channels on a standard armband.
const DefaultSensors = 8

// Handle identifies a connected armband for the lifetime of its connection.
// The driver may reuse a handle after the device disconnects.
type Handle int

// Arm is the forearm the device is worn on, as detected by the hardware.
type Arm string

// Arm constants.
const (
	ArmLeft    Arm = "left"
	ArmRight   Arm = "right"
	ArmUnknown Arm = "unknown"
)

// AllArms returns all valid arm values.
func AllArms() []Arm {
	return []Arm{ArmLeft, ArmRight, ArmUnknown}
}

// XDirection is the calibration orientation of the device's x-axis on the arm.
type XDirection string

// XDirection constants.
const (
	XDirectionTowardWrist XDirection = "toward_wrist"
	XDirectionTowardElbow XDirection = "toward_elbow"
	XDirectionUnknown     XDirection = "unknown"
)

// AllXDirections returns all valid x-direction values.
func AllXDirections() []XDirection {
	return []XDirection{XDirectionTowardWrist, XDirectionTowardElbow, XDirectionUnknown}
}

// Pose is a discrete gesture recognised by the device.
type Pose string

// Pose constants.
const (
	PoseRest          Pose = "rest"
	PoseFist          Pose = "fist"
	PoseWaveIn        Pose = "wave_in"
	PoseWaveOut       Pose = "wave_out"
	PoseFingersSpread Pose = "fingers_spread"
	PoseDoubleTap     Pose = "double_tap"
	PoseUnknown       Pose = "unknown"
)

// AllPoses returns all valid pose values.
func AllPoses() []Pose {
	return []Pose{
		PoseRest, PoseFist, PoseWaveIn, PoseWaveOut,
		PoseFingersSpread, PoseDoubleTap, PoseUnknown,
	}
}

// Vector3 is a three-axis inertial reading.
// Accelerometer values are in g, gyroscope values in deg/s.
type Vector3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// XYZ returns the components in X, Y, Z order.
func (v Vector3) XYZ() [3]float32 {
	return [3]float32{v.X, v.Y, v.Z}
}

// Magnitude returns the Euclidean norm of the vector.
func (v Vector3) Magnitude() float32 {
	return norm(v.X, v.Y, v.Z)
}

// Quaternion is an orientation with unit-quaternion semantics.
type Quaternion struct {
	W float32 `json:"w"`
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// WXYZ returns the components in W, X, Y, Z order.
func (q Quaternion) WXYZ() [4]float32 {
	return [4]float32{q.W, q.X, q.Y, q.Z}
}

// Magnitude returns the Euclidean norm of the quaternion.
// The zero quaternion has magnitude 0.
func (q Quaternion) Magnitude() float32 {
	return norm(q.W, q.X, q.Y, q.Z)
}

// norm accumulates in float64 to keep float32 inputs from overflowing.
func norm(components ...float32) float32 {
	var sum float64
	for _, c := range components {
		f := float64(c)
		sum += f * f
	}
	return float32(math.Sqrt(sum))
}

// Identity is the part of a Record fixed at connect time.
type Identity struct {
	Arm        Arm
	XDirection XDirection
}

// Record is the current state of one connected armband.
//
// Handle, Arm and XDirection are set once at connect. Every other field is
// replaced in place as samples arrive. EMG has a fixed length chosen when the
// Registry was created and is never resized.
type Record struct {
	Handle     Handle     `json:"handle"`
	Arm        Arm        `json:"arm"`
	XDirection XDirection `json:"x_direction"`

	Connected bool `json:"connected"`
	Unlocked  bool `json:"unlocked"`
	Streaming bool `json:"streaming"`

	// Latest sample of each channel
	Pose          Pose       `json:"pose"`
	Orientation   Quaternion `json:"orientation"`
	Accelerometer Vector3    `json:"accelerometer"`
	Gyroscope     Vector3    `json:"gyroscope"`
	EMG           []int      `json:"emg"`

	ConnectedAt time.Time `json:"connected_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// newRecord creates the record for a freshly connected device.
func newRecord(h Handle, id Identity, sensors int, now time.Time) *Record {
	arm := id.Arm
	if arm == "" {
		arm = ArmUnknown
	}
	xdir := id.XDirection
	if xdir == "" {
		xdir = XDirectionUnknown
	}
	return &Record{
		Handle:      h,
		Arm:         arm,
		XDirection:  xdir,
		Connected:   true,
		Pose:        PoseUnknown,
		EMG:         make([]int, sensors),
		ConnectedAt: now,
		UpdatedAt:   now,
	}
}

// DeepCopy creates an independent copy of the Record.
// The EMG buffer is cloned so the copy can be handed to readers.
func (r *Record) DeepCopy() *Record {
	if r == nil {
		return nil
	}
	cpy := *r
	if r.EMG != nil {
		cpy.EMG = make([]int, len(r.EMG))
		copy(cpy.EMG, r.EMG)
	}
	return &cpy
}

// SetEMG overwrites the EMG buffer with values, keeping its length.
// Extra values are ignored; channels beyond len(values) keep their last reading.
func (r *Record) SetEMG(values []int) {
	copy(r.EMG, values)
}
