package driver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/armlink/internal/armband"
)

// Discovery event names.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
)

// DiscoveryMessage announces a device connecting or disconnecting.
// Topic: armlink/discovery
type DiscoveryMessage struct {
	Event      string    `json:"event"`
	Handle     *int      `json:"handle"`
	Arm        string    `json:"arm,omitempty"`
	XDirection string    `json:"x_direction,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

// discoveryEvent is a decoded DiscoveryMessage waiting for the worker.
type discoveryEvent struct {
	connected bool
	connect   armband.ConnectEvent
}

func decodeDiscovery(payload []byte) (discoveryEvent, error) {
	var msg DiscoveryMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return discoveryEvent{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.Handle == nil {
		return discoveryEvent{}, fmt.Errorf("%w: discovery without handle", ErrInvalidMessage)
	}
	h := armband.Handle(*msg.Handle)

	switch msg.Event {
	case EventConnected:
		return discoveryEvent{
			connected: true,
			connect: armband.ConnectEvent{
				Handle:     h,
				Arm:        armband.Arm(msg.Arm),
				XDirection: armband.XDirection(msg.XDirection),
			},
		}, nil
	case EventDisconnected:
		return discoveryEvent{connect: armband.ConnectEvent{Handle: h}}, nil
	default:
		return discoveryEvent{}, fmt.Errorf("%w: unknown event %q", ErrInvalidMessage, msg.Event)
	}
}

// SampleMessage is one telemetry reading.
// Topic: armlink/sample/{handle}
//
// Kind selects the populated field: pose for "pose", vector for
// "accelerometer" and "gyroscope", quaternion (w, x, y, z) for
// "orientation" and emg for "emg". "locked" and "unlocked" carry no data.
type SampleMessage struct {
	Handle     *int        `json:"handle,omitempty"`
	Kind       string      `json:"kind"`
	Pose       string      `json:"pose,omitempty"`
	Vector     *[3]float32 `json:"vector,omitempty"`
	Quaternion *[4]float32 `json:"quaternion,omitempty"`
	EMG        []int       `json:"emg,omitempty"`
	Timestamp  time.Time   `json:"timestamp,omitempty"`
}

// decodeSample decodes a sample published on the topic of handle h.
// A handle in the payload must agree with the topic.
func decodeSample(h armband.Handle, payload []byte) (armband.Sample, error) {
	var msg SampleMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return armband.Sample{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.Handle != nil && armband.Handle(*msg.Handle) != h {
		return armband.Sample{}, fmt.Errorf("%w: payload handle %d on topic of handle %d",
			ErrInvalidMessage, *msg.Handle, h)
	}

	s := armband.Sample{
		Handle:    h,
		Kind:      armband.SampleKind(msg.Kind),
		Timestamp: msg.Timestamp,
	}

	switch s.Kind {
	case armband.SamplePose:
		pose, err := armband.ParsePose(msg.Pose)
		if err != nil {
			return armband.Sample{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		}
		s.Pose = pose
	case armband.SampleAccelerometer, armband.SampleGyroscope:
		if msg.Vector == nil {
			return armband.Sample{}, fmt.Errorf("%w: %s sample without vector", ErrInvalidMessage, s.Kind)
		}
		v := msg.Vector
		s.Vector = armband.Vector3{X: v[0], Y: v[1], Z: v[2]}
	case armband.SampleOrientation:
		if msg.Quaternion == nil {
			return armband.Sample{}, fmt.Errorf("%w: orientation sample without quaternion", ErrInvalidMessage)
		}
		q := msg.Quaternion
		s.Orientation = armband.Quaternion{W: q[0], X: q[1], Y: q[2], Z: q[3]}
	case armband.SampleEMG:
		s.EMG = msg.EMG
	case armband.SampleLocked, armband.SampleUnlocked:
	default:
		return armband.Sample{}, fmt.Errorf("%w: unknown sample kind %q", ErrInvalidMessage, msg.Kind)
	}

	if err := s.Validate(); err != nil {
		return armband.Sample{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return s, nil
}

// CommandMessage is sent to the driver to act on one device.
// Topic: armlink/command/{handle}
type CommandMessage struct {
	// ID correlates the command with driver-side logs.
	ID        string    `json:"id"`
	Handle    int       `json:"handle"`
	Command   string    `json:"command"`
	Unlock    string    `json:"unlock,omitempty"`
	Vibration string    `json:"vibration,omitempty"`
	Enabled   *bool     `json:"enabled,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

func newCommandMessage(h armband.Handle, cmd armband.Command, source string, now time.Time) CommandMessage {
	msg := CommandMessage{
		ID:        uuid.NewString(),
		Handle:    int(h),
		Command:   string(cmd.Kind),
		Timestamp: now,
		Source:    source,
	}
	switch cmd.Kind {
	case armband.CommandUnlock:
		msg.Unlock = string(cmd.Unlock)
	case armband.CommandVibrate:
		msg.Vibration = string(cmd.Vibration)
	case armband.CommandSetStreaming:
		enabled := cmd.Streaming
		msg.Enabled = &enabled
	}
	return msg
}
