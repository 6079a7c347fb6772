package fieldbus

import (
	"fmt"
	"strings"
	"time"

	"github.com/voltgrid/voltgrid-core/internal/driver"
)

// MQTT message types for communication between VoltGrid Core and the
// device driver bridges (SunSpec/Modbus, OCPP, vendor gateways).

// CommandMessage is sent from Core to a bridge to execute a physical action.
// Topic: {prefix}/command/{driver}/{address}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with the ack.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// ComponentID is the VoltGrid component identifier.
	ComponentID int64 `json:"component_id"`

	// Action is the physical action to execute.
	Action driver.Action `json:"action"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was executed and confirmed.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the device did not respond within the
	// bridge's own timeout.
	AckTimeout AckStatus = "timeout"
)

// AckMessage is sent from a bridge to Core to acknowledge a command.
// Topic: {prefix}/ack/{driver}/{address}
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgment was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// ComponentID is the VoltGrid component identifier.
	ComponentID int64 `json:"component_id"`

	// Status indicates the acknowledgment status.
	Status AckStatus `json:"status"`

	// State is the observed component state after the action, present
	// when Status is "accepted".
	State *driver.State `json:"state,omitempty"`

	// Error contains details if status is "failed" or "timeout".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "DEVICE_UNREACHABLE", "INVALID_ACTION").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// Error codes for command and request failures.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidAction     = "INVALID_ACTION"
	ErrCodeProtocolError     = "PROTOCOL_ERROR"
	ErrCodeTimeout           = "TIMEOUT"
)

// RequestMessage is sent from Core to a bridge for request/response
// operations such as fresh state reads.
// Topic: {prefix}/request/{driver}/{request_id}
type RequestMessage struct {
	// RequestID uniquely identifies this request for correlation.
	RequestID string `json:"request_id"`

	// Timestamp is when the request was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Action is the requested operation. Values: "read_state".
	Action string `json:"action"`

	// ComponentID is the target component.
	ComponentID int64 `json:"component_id"`

	// Address is the driver-local address of the component.
	Address string `json:"address"`
}

// ResponseMessage is sent from a bridge to Core in response to a request.
// Topic: {prefix}/response/{driver}/{request_id}
type ResponseMessage struct {
	// RequestID is the ID from the original request.
	RequestID string `json:"request_id"`

	// Timestamp is when the response was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Success indicates whether the request succeeded.
	Success bool `json:"success"`

	// State is the observed component state (for "read_state").
	State *driver.State `json:"state,omitempty"`

	// Error contains error details (if failed).
	Error *AckError `json:"error,omitempty"`
}

// StateMessage is published (retained) by a bridge whenever a component's
// observed state changes, and on bridge startup. It doubles as the
// capability announcement: Features and CanStream tell Core what the
// device supports without a bus round-trip.
// Topic: {prefix}/state/{driver}/{address}
// QoS: 1, Retained: Yes
type StateMessage struct {
	// ComponentID is the VoltGrid component identifier.
	ComponentID int64 `json:"component_id"`

	// Timestamp is when the state was observed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// State is the observed component state.
	State driver.State `json:"state"`

	// Features lists the optional hardware capabilities the device
	// advertises (e.g., "dc_relay", "charge", "bounds").
	Features []string `json:"features,omitempty"`

	// CanStream indicates whether the device delivers live telemetry.
	CanStream bool `json:"can_stream"`
}

// TelemetryMessage is one live measurement sample from a bridge.
// Topic: {prefix}/telemetry/{driver}/{address}
type TelemetryMessage struct {
	// Timestamp is when the sample was measured (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Metric is the measured quantity (e.g., "active_power").
	Metric driver.Metric `json:"metric"`

	// Value is the measured value in the metric's canonical unit.
	Value float64 `json:"value"`
}

// Topic helpers. The prefix is configurable (fieldbus.topic_prefix) so
// multiple cores can share one broker; the default is "voltgrid".

// commandTopic returns the command topic for a component.
// Example: voltgrid/command/sunspec/inverter-7
func commandTopic(prefix, drv, address string) string {
	return fmt.Sprintf("%s/command/%s/%s", prefix, drv, address)
}

// requestTopic returns the request topic for a request ID.
// Example: voltgrid/request/sunspec/req-abc123
func requestTopic(prefix, drv, requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", prefix, drv, requestID)
}

// ackSubscribeTopic returns the subscription pattern for all acks.
// Example: voltgrid/ack/+/+
func ackSubscribeTopic(prefix string) string {
	return fmt.Sprintf("%s/ack/+/+", prefix)
}

// responseSubscribeTopic returns the subscription pattern for all responses.
// Example: voltgrid/response/+/+
func responseSubscribeTopic(prefix string) string {
	return fmt.Sprintf("%s/response/+/+", prefix)
}

// stateSubscribeTopic returns the subscription pattern for all state updates.
// Example: voltgrid/state/+/+
func stateSubscribeTopic(prefix string) string {
	return fmt.Sprintf("%s/state/+/+", prefix)
}

// telemetrySubscribeTopic returns the subscription pattern for all telemetry.
// Example: voltgrid/telemetry/+/+
func telemetrySubscribeTopic(prefix string) string {
	return fmt.Sprintf("%s/telemetry/+/+", prefix)
}

// splitDriverTopic extracts the driver and trailing segment from a topic
// of the form {prefix}/{kind}/{driver}/{segment}. The trailing segment is
// an address for state/telemetry/ack topics and a request ID for
// response topics.
func splitDriverTopic(topic string) (drv, segment string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return "", "", false
	}
	drv = parts[len(parts)-2]
	segment = parts[len(parts)-1]
	if drv == "" || segment == "" {
		return "", "", false
	}
	return drv, segment, true
}
