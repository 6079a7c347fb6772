package mqtt

import "fmt"

// Topic prefixes for the VoltGrid MQTT hierarchy.
//
// All driver topics use the flat scheme: voltgrid/{category}/{driver}/{address}
// This matches the fieldbus bridge's messages.go and all runtime subscribers.
const (
	// TopicPrefixDriver is the base for all driver bridge topics.
	// Flat scheme: voltgrid/{category}/{driver}/{address_or_id}
	TopicPrefixDriver = "voltgrid"

	// TopicPrefixCore is the base for all core topics.
	TopicPrefixCore = "voltgrid/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "voltgrid/system"
)

// Topics provides builders for VoltGrid MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
// Driver topics use the flat scheme matching the fieldbus bridge:
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DriverState("sunspec", "inverter-7")
//	// Returns: "voltgrid/state/sunspec/inverter-7"
type Topics struct{}

// =============================================================================
// Driver Topics
// =============================================================================

// DriverState returns the topic for component state updates from a driver.
//
// Example: voltgrid/state/sunspec/inverter-7
func (Topics) DriverState(driver, address string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefixDriver, driver, address)
}

// DriverCommand returns the topic for commands to a driver.
//
// Example: voltgrid/command/sunspec/inverter-7
func (Topics) DriverCommand(driver, address string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefixDriver, driver, address)
}

// DriverAck returns the topic for command acknowledgements from a driver.
//
// Example: voltgrid/ack/sunspec/inverter-7
func (Topics) DriverAck(driver, address string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefixDriver, driver, address)
}

// DriverResponse returns the topic for request responses from a driver.
//
// Example: voltgrid/response/sunspec/req-abc123
func (Topics) DriverResponse(driver, requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefixDriver, driver, requestID)
}

// DriverRequest returns the topic for requests to a driver.
//
// Example: voltgrid/request/sunspec/req-abc123
func (Topics) DriverRequest(driver, requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefixDriver, driver, requestID)
}

// DriverTelemetry returns the topic for live measurement samples from a driver.
//
// Example: voltgrid/telemetry/sunspec/inverter-7
func (Topics) DriverTelemetry(driver, address string) string {
	return fmt.Sprintf("%s/telemetry/%s/%s", TopicPrefixDriver, driver, address)
}

// DriverHealth returns the topic for driver health status.
//
// Example: voltgrid/health/sunspec
func (Topics) DriverHealth(driver string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefixDriver, driver)
}

// =============================================================================
// Core Topics
// =============================================================================

// CoreComponentState returns the canonical component state topic.
// This is the authoritative state published by Core after processing driver updates.
//
// Example: voltgrid/core/component/7/state
func (Topics) CoreComponentState(componentID string) string {
	return fmt.Sprintf("%s/component/%s/state", TopicPrefixCore, componentID)
}

// CoreLifecycleEvent returns the topic for lifecycle command outcomes.
//
// Example: voltgrid/core/lifecycle/7
func (Topics) CoreLifecycleEvent(componentID string) string {
	return fmt.Sprintf("%s/lifecycle/%s", TopicPrefixCore, componentID)
}

// CoreAlert returns the topic for system alerts.
//
// Example: voltgrid/core/alert/alert-inverter-fault
func (Topics) CoreAlert(alertID string) string {
	return fmt.Sprintf("%s/alert/%s", TopicPrefixCore, alertID)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic.
//
// Example: voltgrid/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// SystemShutdown returns the shutdown signal topic.
//
// Example: voltgrid/system/shutdown
func (Topics) SystemShutdown() string {
	return fmt.Sprintf("%s/shutdown", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllDriverStates returns a pattern matching all driver state updates.
//
// Pattern: voltgrid/state/+/+
func (Topics) AllDriverStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefixDriver)
}

// AllDriverAcks returns a pattern matching all driver acknowledgements.
//
// Pattern: voltgrid/ack/+/+
func (Topics) AllDriverAcks() string {
	return fmt.Sprintf("%s/ack/+/+", TopicPrefixDriver)
}

// AllDriverHealth returns a pattern matching all driver health updates.
//
// Pattern: voltgrid/health/+
func (Topics) AllDriverHealth() string {
	return fmt.Sprintf("%s/health/+", TopicPrefixDriver)
}

// AllDriverResponses returns a pattern matching all driver response topics.
//
// Pattern: voltgrid/response/+/+
func (Topics) AllDriverResponses() string {
	return fmt.Sprintf("%s/response/+/+", TopicPrefixDriver)
}

// AllDriverTelemetry returns a pattern matching all driver telemetry topics.
//
// Pattern: voltgrid/telemetry/+/+
func (Topics) AllDriverTelemetry() string {
	return fmt.Sprintf("%s/telemetry/+/+", TopicPrefixDriver)
}

// AllTopics returns a pattern matching all VoltGrid topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: voltgrid/#
func (Topics) AllTopics() string {
	return "voltgrid/#"
}
