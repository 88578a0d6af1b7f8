package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// TopicPrefix is the root of every Armlink topic.
//
// Topic hierarchy:
//
//	armlink/discovery            driver → hub   connect/disconnect events
//	armlink/sample/{handle}      driver → hub   typed telemetry for one device
//	armlink/command/{handle}     hub → driver   lock/unlock/vibrate/set_streaming
//	armlink/system/status        hub → all      retained online/offline (LWT)
//	armlink/system/stats         hub → all      periodic device counts
const TopicPrefix = "armlink"

// Topics provides builders for Armlink MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Sample(3) // "armlink/sample/3"
type Topics struct{}

// Discovery returns the topic carrying connect and disconnect events.
//
// Example: armlink/discovery
func (Topics) Discovery() string {
	return TopicPrefix + "/discovery"
}

// Sample returns the telemetry topic for one device handle.
//
// Example: armlink/sample/3
func (Topics) Sample(handle int) string {
	return fmt.Sprintf("%s/sample/%d", TopicPrefix, handle)
}

// Command returns the command topic for one device handle.
//
// Example: armlink/command/3
func (Topics) Command(handle int) string {
	return fmt.Sprintf("%s/command/%d", TopicPrefix, handle)
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: armlink/system/status
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// SystemStats returns the topic for periodic hub statistics.
//
// Example: armlink/system/stats
func (Topics) SystemStats() string {
	return TopicPrefix + "/system/stats"
}

// AllSamples returns a pattern matching every device's telemetry.
//
// Pattern: armlink/sample/+
func (Topics) AllSamples() string {
	return TopicPrefix + "/sample/+"
}

// AllCommands returns a pattern matching every device's commands.
//
// Pattern: armlink/command/+
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+"
}

// AllTopics returns a pattern matching all Armlink traffic.
//
// Pattern: armlink/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// HandleFromTopic extracts the device handle from a sample or command topic.
func HandleFromTopic(topic string) (int, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != TopicPrefix {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	switch parts[1] {
	case "sample", "command":
	default:
		return 0, fmt.Errorf("%w: %q has no handle", ErrInvalidTopic, topic)
	}
	h, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("%w: handle %q: %w", ErrInvalidTopic, parts[2], err)
	}
	return h, nil
}
