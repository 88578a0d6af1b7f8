package armband

import "fmt"

// CommandKind is the type of an outbound device command.
type CommandKind string

// CommandKind constants.
const (
	CommandLock         CommandKind = "lock"
	CommandUnlock       CommandKind = "unlock"
	CommandVibrate      CommandKind = "vibrate"
	CommandSetStreaming CommandKind = "set_streaming"
)

// UnlockType controls how long a device stays unlocked.
type UnlockType string

// UnlockType constants.
const (
	// UnlockTimed unlocks until the device's idle timeout relocks it.
	UnlockTimed UnlockType = "timed"

	// UnlockHold unlocks until an explicit lock command.
	UnlockHold UnlockType = "hold"
)

// VibrationType is the length of a haptic pulse.
type VibrationType string

// VibrationType constants.
const (
	VibrationShort  VibrationType = "short"
	VibrationMedium VibrationType = "medium"
	VibrationLong   VibrationType = "long"
)

// AllVibrationTypes returns all valid vibration types.
func AllVibrationTypes() []VibrationType {
	return []VibrationType{VibrationShort, VibrationMedium, VibrationLong}
}

// Command is one request for the outbound command sink.
// Only the field matching Kind is meaningful.
type Command struct {
	Kind      CommandKind
	Unlock    UnlockType
	Vibration VibrationType
	Streaming bool
}

// LockCommand returns a lock command.
func LockCommand() Command {
	return Command{Kind: CommandLock}
}

// UnlockCommand returns an unlock command of the given type.
func UnlockCommand(t UnlockType) Command {
	return Command{Kind: CommandUnlock, Unlock: t}
}

// VibrateCommand returns a vibrate command of the given length.
func VibrateCommand(v VibrationType) Command {
	return Command{Kind: CommandVibrate, Vibration: v}
}

// StreamingCommand returns a command enabling or disabling raw EMG streaming.
func StreamingCommand(enabled bool) Command {
	return Command{Kind: CommandSetStreaming, Streaming: enabled}
}

// Validate checks that the command is well formed.
func (c Command) Validate() error {
	switch c.Kind {
	case CommandLock, CommandSetStreaming:
		return nil
	case CommandUnlock:
		if c.Unlock != UnlockTimed && c.Unlock != UnlockHold {
			return fmt.Errorf("%w: %q", ErrInvalidUnlockType, c.Unlock)
		}
		return nil
	case CommandVibrate:
		return ValidateVibration(c.Vibration)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCommand, c.Kind)
	}
}

// String returns a compact description for logs.
func (c Command) String() string {
	switch c.Kind {
	case CommandUnlock:
		return fmt.Sprintf("unlock(%s)", c.Unlock)
	case CommandVibrate:
		return fmt.Sprintf("vibrate(%s)", c.Vibration)
	case CommandSetStreaming:
		return fmt.Sprintf("set_streaming(%t)", c.Streaming)
	default:
		return string(c.Kind)
	}
}
