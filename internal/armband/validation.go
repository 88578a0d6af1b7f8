package armband

import (
	"fmt"
	"strings"
)

// Lookup tables for O(1) validation.
var (
	validArms        = make(map[Arm]struct{})
	validXDirections = make(map[XDirection]struct{})
	validPoses       = make(map[Pose]struct{})
	validVibrations  = make(map[VibrationType]struct{})
)

func init() {
	for _, a := range AllArms() {
		validArms[a] = struct{}{}
	}
	for _, x := range AllXDirections() {
		validXDirections[x] = struct{}{}
	}
	for _, p := range AllPoses() {
		validPoses[p] = struct{}{}
	}
	for _, v := range AllVibrationTypes() {
		validVibrations[v] = struct{}{}
	}
}

// ValidateArm checks if an arm value is valid.
func ValidateArm(arm Arm) error {
	if _, ok := validArms[arm]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidArm, arm)
}

// ValidateXDirection checks if an x-direction value is valid.
func ValidateXDirection(x XDirection) error {
	if _, ok := validXDirections[x]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidXDirection, x)
}

// ValidatePose checks if a pose value is valid.
func ValidatePose(pose Pose) error {
	if _, ok := validPoses[pose]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidPose, pose)
}

// ValidateVibration checks if a vibration type is valid.
func ValidateVibration(v VibrationType) error {
	if _, ok := validVibrations[v]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidVibration, v)
}

// ParseArm normalises a driver-reported arm. Empty or unrecognised values
// map to ArmUnknown; the hardware reports unknown until it syncs.
func ParseArm(s string) Arm {
	arm := Arm(strings.ToLower(strings.TrimSpace(s)))
	if ValidateArm(arm) != nil {
		return ArmUnknown
	}
	return arm
}

// ParseXDirection normalises a driver-reported x-direction, defaulting to unknown.
func ParseXDirection(s string) XDirection {
	x := XDirection(strings.ToLower(strings.TrimSpace(s)))
	if ValidateXDirection(x) != nil {
		return XDirectionUnknown
	}
	return x
}

// ParsePose parses a pose name case-insensitively.
func ParsePose(s string) (Pose, error) {
	p := Pose(strings.ToLower(strings.TrimSpace(s)))
	if err := ValidatePose(p); err != nil {
		return "", err
	}
	return p, nil
}

// ParseVibration parses "short", "medium" or "long" case-insensitively.
func ParseVibration(s string) (VibrationType, error) {
	v := VibrationType(strings.ToLower(strings.TrimSpace(s)))
	if err := ValidateVibration(v); err != nil {
		return "", err
	}
	return v, nil
}
