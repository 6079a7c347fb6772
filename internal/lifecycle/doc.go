// Package lifecycle implements the per-component command orchestrator.
//
// A lifecycle command (Start, Stop, HotStandby, ColdStandby, Charge,
// Discharge, ErrorAck) is executed as an ordered action plan selected by
// the component's category. Each step is a precondition/action pair:
// required preconditions abort the command, already-satisfied actions are
// skipped, and steps gated on an absent hardware feature are skipped
// individually. Per-step skipping makes retries of the same command
// idempotent while precondition checks stop the machine before a
// physically unsafe action.
//
// Observed state is read fresh from the adapter before every command and
// updated from each action's confirmation; it is never cached across
// calls.
//
// At most one command is in flight per component ID. The exclusion lock
// is held for the duration of a command, but every adapter call inside is
// individually time-bounded, so a hung device surfaces as a timeout error
// rather than blocking all future commands to that component.
package lifecycle
