package armband

import "errors"

// Domain errors for the armband package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, armband.ErrInvalidPose) {
//	    // drop the sample
//	}
var (
	// ErrInvalidArm is returned when an arm value is not recognised.
	ErrInvalidArm = errors.New("armband: invalid arm")

	// ErrInvalidXDirection is returned when an x-direction value is not recognised.
	ErrInvalidXDirection = errors.New("armband: invalid x-direction")

	// ErrInvalidPose is returned when a pose value is not recognised.
	ErrInvalidPose = errors.New("armband: invalid pose")

	// ErrInvalidSampleKind is returned when a sample kind is not recognised.
	ErrInvalidSampleKind = errors.New("armband: invalid sample kind")

	// ErrInvalidCommand is returned when a command is malformed.
	ErrInvalidCommand = errors.New("armband: invalid command")

	// ErrInvalidVibration is returned when a vibration type is not recognised.
	ErrInvalidVibration = errors.New("armband: invalid vibration type")

	// ErrInvalidUnlockType is returned when an unlock type is not recognised.
	ErrInvalidUnlockType = errors.New("armband: invalid unlock type")
)
