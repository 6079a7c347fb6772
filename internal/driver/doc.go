// Package driver defines the boundary between the control plane and the
// hardware/fieldbus layer: the Adapter interface, observed component
// state, physical actions, optional features and telemetry samples.
//
// The package holds no implementation of its own; bridges (see
// internal/bridges) implement Adapter over a concrete transport.
package driver
