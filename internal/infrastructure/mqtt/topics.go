package mqtt

import "fmt"

// Topic prefixes for the Terminal Core event boundary.
// All topics use the flat scheme: termcore/{category}/{id}[/{detail}]
const (
	// TopicPrefix is the base for all Terminal Core topics.
	TopicPrefix = "termcore"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "termcore/system"
)

// Topics provides builders for Terminal Core MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// RegisterValue returns the topic for register value change notifications.
//
// Example: termcore/register/bay1-flowcomp/100
func (Topics) RegisterValue(deviceID string, address uint16) string {
	return fmt.Sprintf("%s/register/%s/%d", TopicPrefix, deviceID, address)
}

// DeviceHealth returns the topic for device poll-health snapshots.
//
// Example: termcore/device/bay1-flowcomp/health
func (Topics) DeviceHealth(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/health", TopicPrefix, deviceID)
}

// BlendState returns the topic for blend operation state transitions.
//
// Example: termcore/blend/op-7f3a/state
func (Topics) BlendState(operationID string) string {
	return fmt.Sprintf("%s/blend/%s/state", TopicPrefix, operationID)
}

// BlendProgress returns the topic for blend progress snapshots.
//
// Example: termcore/blend/op-7f3a/progress
func (Topics) BlendProgress(operationID string) string {
	return fmt.Sprintf("%s/blend/%s/progress", TopicPrefix, operationID)
}

// SystemStatus returns the core online/offline status topic.
//
// Example: termcore/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllRegisterValues returns a pattern matching all register change topics.
//
// Pattern: termcore/register/+/+
func (Topics) AllRegisterValues() string {
	return fmt.Sprintf("%s/register/+/+", TopicPrefix)
}

// AllDeviceHealth returns a pattern matching all device health topics.
//
// Pattern: termcore/device/+/health
func (Topics) AllDeviceHealth() string {
	return fmt.Sprintf("%s/device/+/health", TopicPrefix)
}

// AllBlendEvents returns a pattern matching all blend topics.
//
// Pattern: termcore/blend/#
func (Topics) AllBlendEvents() string {
	return fmt.Sprintf("%s/blend/#", TopicPrefix)
}
