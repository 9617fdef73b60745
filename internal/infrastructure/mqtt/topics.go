package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the lumen MQTT hierarchy.
//
// Controllers publish telemetry to lumen/device/{id}/telemetry and
// subscribe to lumen/device/{id}/state for the committed state echo.
const (
	// TopicPrefixDevice is the base for per-device topics.
	TopicPrefixDevice = "lumen/device"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "lumen/system"
)

// Topics provides builders for lumen MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// DeviceTelemetry returns the topic a controller publishes sensor
// pushes to.
//
// Example: lumen/device/esp32-001/telemetry
func (Topics) DeviceTelemetry(deviceID string) string {
	return fmt.Sprintf("%s/%s/telemetry", TopicPrefixDevice, deviceID)
}

// DeviceState returns the topic carrying the committed device state.
// Published retained so a reconnecting controller immediately sees the
// authoritative light state and config.
//
// Example: lumen/device/esp32-001/state
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixDevice, deviceID)
}

// SystemStatus returns the backend status topic, also used for the LWT.
//
// Example: lumen/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceTelemetry returns a pattern matching every telemetry push.
//
// Pattern: lumen/device/+/telemetry
func (Topics) AllDeviceTelemetry() string {
	return fmt.Sprintf("%s/+/telemetry", TopicPrefixDevice)
}

// AllDeviceStates returns a pattern matching every state echo.
//
// Pattern: lumen/device/+/state
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/+/state", TopicPrefixDevice)
}

// DeviceIDFromTopic extracts the device id from a per-device topic.
// Returns ErrInvalidTopic for topics outside the lumen/device hierarchy.
func (Topics) DeviceIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0]+"/"+parts[1] != TopicPrefixDevice || parts[2] == "" {
		return "", fmt.Errorf("%w: %q is not a device topic", ErrInvalidTopic, topic)
	}
	return parts[2], nil
}
