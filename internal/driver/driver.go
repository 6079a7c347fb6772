package driver

import (
	"context"
	"time"
)

// Adapter is the boundary to the hardware/fieldbus layer. The orchestrator,
// telemetry fan-out and bounds handler consume this interface; how an
// action physically reaches a relay is the implementing bridge's concern.
//
// Implementations must be safe for concurrent use: different components
// may be commanded in parallel.
type Adapter interface {
	// ReadState returns a fresh snapshot of the component's observed
	// physical state. Implementations must not serve cached values; the
	// orchestrator relies on this read happening immediately before each
	// lifecycle decision.
	ReadState(ctx context.Context, componentID int64) (State, error)

	// Apply executes a single physical action and returns the resulting
	// observed state. A non-nil error means the action was not confirmed;
	// callers must not assume partial success.
	Apply(ctx context.Context, componentID int64, action Action) (State, error)

	// Supports reports whether the component advertises the given feature.
	// A static capability check with no side effects.
	Supports(componentID int64, feature Feature) bool

	// CanStream reports whether the adapter declares telemetry support
	// for the component. A static capability check with no side effects.
	CanStream(componentID int64) bool
}

// State is the observed snapshot of a component's physical flags used to
// decide skip/precondition outcomes. It is read fresh from the adapter
// before every decision and never cached across commands.
type State struct {
	ACRelaysClosed bool    `json:"ac_relays_closed"`
	DCRelaysClosed bool    `json:"dc_relays_closed"`
	PowerOutputW   float64 `json:"power_output_w"`
	FaultActive    bool    `json:"fault_active"`
}

// ActionKind identifies a physical action the adapter can execute.
type ActionKind string

// Action kinds.
const (
	ActionCloseACRelays ActionKind = "close_ac_relays"
	ActionOpenACRelays  ActionKind = "open_ac_relays"
	ActionCloseDCRelays ActionKind = "close_dc_relays"
	ActionOpenDCRelays  ActionKind = "open_dc_relays"
	ActionSetPower      ActionKind = "set_power"
	ActionCharge        ActionKind = "charge"
	ActionDischarge     ActionKind = "discharge"
	ActionAckError      ActionKind = "ack_error"
	ActionSetBounds     ActionKind = "set_bounds"
)

// Action is a single physical instruction for a component.
//
// PowerW is meaningful for set_power, charge and discharge; it is always
// non-negative, with the direction of energy flow determined by the kind.
// Metric and Bounds are meaningful only for set_bounds.
type Action struct {
	Kind   ActionKind `json:"kind"`
	PowerW float64    `json:"power_w,omitempty"`
	Metric Metric     `json:"metric,omitempty"`
	Bounds *Bounds    `json:"bounds,omitempty"`
}

// Feature identifies an optional hardware capability. A lifecycle step
// that requires an absent feature is skipped, not failed.
type Feature string

// Features.
const (
	FeatureDCRelay   Feature = "dc_relay"
	FeatureCharge    Feature = "charge"
	FeatureDischarge Feature = "discharge"
	FeatureBounds    Feature = "bounds"
)

// Metric identifies a measured quantity for telemetry and bounds. Closed
// but extensible enum; currently only active power is defined.
type Metric string

// Metrics.
const (
	MetricUnspecified Metric = ""
	MetricActivePower Metric = "active_power"
)

// Bounds is a closed interval constraint on a metric.
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Sample is one telemetry item pushed by the adapter feed, tagged with
// its arrival timestamp.
type Sample struct {
	ComponentID int64     `json:"component_id"`
	Metric      Metric    `json:"metric"`
	Value       float64   `json:"value"`
	Timestamp   time.Time `json:"timestamp"`
}
