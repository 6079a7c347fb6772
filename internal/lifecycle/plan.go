package lifecycle

import (
	"github.com/voltgrid/voltgrid-core/internal/component"
	"github.com/voltgrid/voltgrid-core/internal/driver"
)

// Command is a lifecycle transition request.
type Command string

// Commands.
const (
	CommandStart       Command = "start"
	CommandStop        Command = "stop"
	CommandHotStandby  Command = "hot_standby"
	CommandColdStandby Command = "cold_standby"
	CommandCharge      Command = "charge"
	CommandDischarge   Command = "discharge"
	CommandErrorAck    Command = "error_ack"
)

// Step is one precondition/action/postcondition triple of an action plan.
//
// Evaluation order within the executor:
//  1. If Feature is set and the component does not advertise it, the step
//     is skipped (the command continues).
//  2. If Require is set and evaluates false against observed state, the
//     command aborts with ErrPreconditionFailed.
//  3. If Satisfied evaluates true, the action is skipped (idempotence).
//  4. Otherwise the action is applied and the observed state updated from
//     the adapter's confirmation.
type Step struct {
	Name string

	// Feature gates the whole step on an optional hardware capability.
	Feature driver.Feature

	// Require is a hard precondition; false aborts the command.
	Require func(driver.State) bool

	// Satisfied reports whether the action's target condition already
	// holds, in which case the action is skipped.
	Satisfied func(driver.State) bool

	// Action builds the physical instruction. The power argument carries
	// the caller-requested level for power-parameterised commands and is
	// zero otherwise.
	Action func(powerW float64) driver.Action
}

// commandFeatures maps power-flow commands onto the capability a driver
// must announce before the command may run. Unlike a Step feature gate,
// which skips the step and lets the command continue, a missing command
// capability rejects the whole command: silently "succeeding" at a charge
// the hardware cannot perform would mislead the caller.
var commandFeatures = map[Command]driver.Feature{
	CommandCharge:    driver.FeatureCharge,
	CommandDischarge: driver.FeatureDischarge,
}

// planTable maps category and command to an ordered action plan.
//
// Categories register their own plans here; commands absent for a category
// fail with ErrUnsupportedOperation. Meter, sensor, converter, CHP,
// electrolyzer, crypto-miner and grid-endpoint intentionally have no plans:
// their lifecycle behaviour is undefined and guessing a default action
// sequence against live power electronics is not acceptable.
type planTable map[component.Category]map[Command][]Step

func acClosed(s driver.State) bool  { return s.ACRelaysClosed }
func dcClosed(s driver.State) bool  { return s.DCRelaysClosed }
func dcOpen(s driver.State) bool    { return !s.DCRelaysClosed }
func acOpen(s driver.State) bool    { return !s.ACRelaysClosed }
func powerZero(s driver.State) bool { return s.PowerOutputW == 0 }
func noFault(s driver.State) bool   { return !s.FaultActive }
func relaysClosed(s driver.State) bool {
	return s.ACRelaysClosed && s.DCRelaysClosed
}

func action(kind driver.ActionKind) func(float64) driver.Action {
	return func(float64) driver.Action {
		return driver.Action{Kind: kind}
	}
}

func powerAction(kind driver.ActionKind) func(float64) driver.Action {
	return func(powerW float64) driver.Action {
		return driver.Action{Kind: kind, PowerW: powerW}
	}
}

func setPowerZero(float64) driver.Action {
	return driver.Action{Kind: driver.ActionSetPower, PowerW: 0}
}

// newPlanTable builds the category plan registry.
func newPlanTable() planTable {
	closeDC := Step{
		Name:      "close_dc_relays",
		Feature:   driver.FeatureDCRelay,
		Satisfied: dcClosed,
		Action:    action(driver.ActionCloseDCRelays),
	}
	closeAC := Step{
		Name:      "close_ac_relays",
		Satisfied: acClosed,
		Action:    action(driver.ActionCloseACRelays),
	}
	requireRelaysClosed := Step{
		Name:    "require_relays_closed",
		Require: relaysClosed,
	}
	zeroPower := Step{
		Name:      "set_power_zero",
		Satisfied: powerZero,
		Action:    setPowerZero,
	}
	openAC := Step{
		Name:      "open_ac_relays",
		Satisfied: acOpen,
		Action:    action(driver.ActionOpenACRelays),
	}
	openDC := Step{
		Name:      "open_dc_relays",
		Feature:   driver.FeatureDCRelay,
		Satisfied: dcOpen,
		Action:    action(driver.ActionOpenDCRelays),
	}
	charge := Step{
		Name:   "charge",
		Action: powerAction(driver.ActionCharge),
	}
	discharge := Step{
		Name:   "discharge",
		Action: powerAction(driver.ActionDischarge),
	}
	ackError := Step{
		Name:      "ack_error",
		Satisfied: noFault,
		Action:    action(driver.ActionAckError),
	}

	inverterColdStandby := []Step{requireRelaysClosed, zeroPower, openAC}

	// Stop reuses the cold-standby sequence, then drops the DC side.
	inverterStop := make([]Step, 0, len(inverterColdStandby)+1)
	inverterStop = append(inverterStop, inverterColdStandby...)
	inverterStop = append(inverterStop, openDC)

	return planTable{
		component.CategoryInverter: {
			CommandStart:       {closeDC, closeAC, zeroPower},
			CommandHotStandby:  {requireRelaysClosed, zeroPower},
			CommandColdStandby: inverterColdStandby,
			CommandStop:        inverterStop,
			CommandCharge:      {charge},
			CommandDischarge:   {discharge},
			CommandErrorAck:    {ackError},
		},
		component.CategoryBattery: {
			CommandStart: {
				{
					Name:      "close_dc_relays",
					Satisfied: dcClosed,
					Action:    action(driver.ActionCloseDCRelays),
				},
			},
			CommandStop: {
				{Name: "require_power_zero", Require: powerZero},
				{
					Name:      "open_dc_relays",
					Satisfied: dcOpen,
					Action:    action(driver.ActionOpenDCRelays),
				},
			},
			CommandCharge:    {charge},
			CommandDischarge: {discharge},
			CommandErrorAck:  {ackError},
		},
		component.CategoryEVCharger: {
			CommandCharge:    {charge},
			CommandDischarge: {discharge},
			CommandErrorAck:  {ackError},
		},
	}
}

// lookup returns the plan for the given category and command, or false if
// none is registered.
func (t planTable) lookup(cat component.Category, cmd Command) ([]Step, bool) {
	cmds, ok := t[cat]
	if !ok {
		return nil, false
	}
	plan, ok := cmds[cmd]
	return plan, ok
}
