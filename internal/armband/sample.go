package armband

import (
	"fmt"
	"time"
)

// SampleKind identifies which channel a Sample carries.
type SampleKind string

// SampleKind constants.
const (
	SamplePose          SampleKind = "pose"
	SampleOrientation   SampleKind = "orientation"
	SampleAccelerometer SampleKind = "accelerometer"
	SampleGyroscope     SampleKind = "gyroscope"
	SampleEMG           SampleKind = "emg"
	SampleLocked        SampleKind = "locked"
	SampleUnlocked      SampleKind = "unlocked"
)

// AllSampleKinds returns all valid sample kinds.
func AllSampleKinds() []SampleKind {
	return []SampleKind{
		SamplePose, SampleOrientation, SampleAccelerometer, SampleGyroscope,
		SampleEMG, SampleLocked, SampleUnlocked,
	}
}

// Sample is one typed telemetry event from the driver.
// Only the field matching Kind is meaningful.
type Sample struct {
	Handle      Handle
	Kind        SampleKind
	Pose        Pose
	Vector      Vector3
	Orientation Quaternion
	EMG         []int
	Timestamp   time.Time
}

// ConnectEvent is delivered by the discovery feed when an armband connects.
type ConnectEvent struct {
	Handle     Handle
	Arm        Arm
	XDirection XDirection
}

// Identity returns the connect-time identity carried by the event.
func (e ConnectEvent) Identity() Identity {
	return Identity{Arm: e.Arm, XDirection: e.XDirection}
}

// Validate checks that the sample kind is known and its payload is usable.
func (s Sample) Validate() error {
	switch s.Kind {
	case SamplePose:
		return ValidatePose(s.Pose)
	case SampleOrientation, SampleAccelerometer, SampleGyroscope,
		SampleLocked, SampleUnlocked:
		return nil
	case SampleEMG:
		if len(s.EMG) == 0 {
			return fmt.Errorf("%w: empty emg sample", ErrInvalidSampleKind)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSampleKind, s.Kind)
	}
}

// Apply overwrites the record field carried by the sample.
// It returns false if the kind is unknown, leaving the record untouched.
func (s Sample) Apply(r *Record) bool {
	switch s.Kind {
	case SamplePose:
		r.Pose = s.Pose
	case SampleOrientation:
		r.Orientation = s.Orientation
	case SampleAccelerometer:
		r.Accelerometer = s.Vector
	case SampleGyroscope:
		r.Gyroscope = s.Vector
	case SampleEMG:
		r.SetEMG(s.EMG)
	case SampleLocked:
		r.Unlocked = false
	case SampleUnlocked:
		r.Unlocked = true
	default:
		return false
	}

	if s.Timestamp.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	} else {
		r.UpdatedAt = s.Timestamp
	}
	return true
}
