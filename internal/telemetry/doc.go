// Package telemetry implements the fan-out path from the driver feed to
// per-component subscriber streams.
//
// Each subscription owns a bounded buffer; the publisher never blocks on
// a slow consumer. The overflow policy (drop oldest or drop newest) is a
// configuration choice, not a hardcoded behaviour.
package telemetry
