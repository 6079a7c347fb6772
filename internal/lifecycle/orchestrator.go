package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voltgrid/voltgrid-core/internal/component"
	"github.com/voltgrid/voltgrid-core/internal/driver"
)

// Registry is the interface the orchestrator needs from the component
// package: category lookup for plan selection.
type Registry interface {
	// Get retrieves a component by ID.
	// Returns component.ErrNotFound if the component does not exist.
	Get(id int64) (component.Component, error)
}

// EventSink is the interface for publishing command outcomes to the
// message bus. May be nil if no bus is wired.
type EventSink interface {
	// Publish sends a message to the specified MQTT topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger is the narrow logging interface used by the orchestrator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StepOutcome classifies what happened to one plan step.
type StepOutcome string

// Step outcomes. Skips are not errors.
const (
	StepExecuted         StepOutcome = "executed"
	StepSkippedSatisfied StepOutcome = "skipped_satisfied"
	StepSkippedFeature   StepOutcome = "skipped_feature"
)

// StepResult records the outcome of one plan step.
type StepResult struct {
	Name    string      `json:"name"`
	Outcome StepOutcome `json:"outcome"`
}

// Result is the report for a completed lifecycle command.
type Result struct {
	CommandID   string       `json:"command_id"`
	ComponentID int64        `json:"component_id"`
	Command     Command      `json:"command"`
	Steps       []StepResult `json:"steps"`
	State       driver.State `json:"state"`
}

// Options configures orchestrator behaviour.
type Options struct {
	// ActionTimeout bounds every individual adapter call (state read and
	// each action). A hung adapter becomes a reported timeout instead of
	// holding the component's exclusion lock forever.
	ActionTimeout time.Duration

	// NonBlocking rejects overlapping commands for the same component
	// with ErrBusy instead of queueing them.
	NonBlocking bool
}

const defaultActionTimeout = 10 * time.Second

// Orchestrator executes per-category action plans against the driver
// adapter, one command at a time per component.
//
// Thread Safety: Execute is safe for concurrent use. Commands targeting
// the same component ID are serialized; commands on different IDs run
// fully in parallel.
type Orchestrator struct {
	registry Registry
	adapter  driver.Adapter
	plans    planTable
	opts     Options
	events   EventSink
	logger   Logger

	locks   map[int64]*sync.Mutex
	locksMu sync.Mutex
}

// New creates a lifecycle orchestrator.
//
// Parameters:
//   - registry: component lookup for plan selection
//   - adapter: the driver boundary actions are executed against
//   - events: sink for command outcome events (may be nil)
//   - opts: timeouts and concurrency behaviour
func New(registry Registry, adapter driver.Adapter, events EventSink, opts Options) *Orchestrator {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = defaultActionTimeout
	}
	return &Orchestrator{
		registry: registry,
		adapter:  adapter,
		plans:    newPlanTable(),
		opts:     opts,
		events:   events,
		logger:   noopLogger{},
		locks:    make(map[int64]*sync.Mutex),
	}
}

// SetLogger sets the logger for the orchestrator.
func (o *Orchestrator) SetLogger(logger Logger) {
	o.logger = logger
}

// Execute runs a lifecycle command against a component.
//
// powerW carries the requested power level for Charge/Discharge and is
// ignored for other commands. It must be non-negative; the direction of
// energy flow is fixed by the command, not the sign.
//
// Errors: component.ErrNotFound, ErrUnsupportedOperation, ErrBusy,
// ErrInvalidArgument, ErrPreconditionFailed, ErrAdapterTimeout,
// ErrAdapterFailure.
func (o *Orchestrator) Execute(ctx context.Context, componentID int64, cmd Command, powerW float64) (*Result, error) {
	if powerW < 0 {
		return nil, fmt.Errorf("%w: negative power %g", ErrInvalidArgument, powerW)
	}

	comp, err := o.registry.Get(componentID)
	if err != nil {
		return nil, err
	}

	plan, ok := o.plans.lookup(comp.Category, cmd)
	if !ok {
		return nil, fmt.Errorf("%w: %s for category %s", ErrUnsupportedOperation, cmd, comp.Category)
	}

	if feat, ok := commandFeatures[cmd]; ok && !o.adapter.Supports(componentID, feat) {
		return nil, fmt.Errorf("%w: component %d does not announce %s", ErrUnsupportedOperation, componentID, feat)
	}

	lock := o.lockFor(componentID)
	if o.opts.NonBlocking {
		if !lock.TryLock() {
			return nil, fmt.Errorf("%w: component %d", ErrBusy, componentID)
		}
	} else {
		lock.Lock()
	}
	defer lock.Unlock()

	result, err := o.run(ctx, componentID, cmd, plan, powerW)
	if err != nil {
		o.logger.Warn("lifecycle command failed",
			"component_id", componentID,
			"command", cmd,
			"error", err,
		)
		return nil, err
	}

	o.logger.Info("lifecycle command completed",
		"component_id", componentID,
		"command", cmd,
		"command_id", result.CommandID,
		"steps", len(result.Steps),
	)
	o.publishResult(result)

	return result, nil
}

// run executes the plan. The caller holds the component's exclusion lock;
// every adapter call inside is individually bounded by ActionTimeout so a
// hung adapter cannot hold the lock indefinitely.
func (o *Orchestrator) run(ctx context.Context, componentID int64, cmd Command, plan []Step, powerW float64) (*Result, error) {
	// Observed state is read fresh for every command, never cached, so
	// decisions are made against the device's actual physical state.
	state, err := o.readState(ctx, componentID)
	if err != nil {
		return nil, err
	}

	result := &Result{
		CommandID:   uuid.NewString(),
		ComponentID: componentID,
		Command:     cmd,
		Steps:       make([]StepResult, 0, len(plan)),
	}

	for _, step := range plan {
		if step.Feature != "" && !o.adapter.Supports(componentID, step.Feature) {
			result.Steps = append(result.Steps, StepResult{step.Name, StepSkippedFeature})
			continue
		}

		if step.Require != nil && !step.Require(state) {
			// Abort immediately. Actions already executed remain applied;
			// there is no rollback.
			return nil, fmt.Errorf("%w: %s (component %d)", ErrPreconditionFailed, step.Name, componentID)
		}

		if step.Action == nil {
			// Pure precondition step.
			result.Steps = append(result.Steps, StepResult{step.Name, StepExecuted})
			continue
		}

		if step.Satisfied != nil && step.Satisfied(state) {
			result.Steps = append(result.Steps, StepResult{step.Name, StepSkippedSatisfied})
			continue
		}

		state, err = o.applyAction(ctx, componentID, step.Action(powerW))
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", step.Name, err)
		}
		result.Steps = append(result.Steps, StepResult{step.Name, StepExecuted})
	}

	result.State = state
	return result, nil
}

// readState reads fresh observed state with a bounded wait.
func (o *Orchestrator) readState(ctx context.Context, componentID int64) (driver.State, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.opts.ActionTimeout)
	defer cancel()

	state, err := o.adapter.ReadState(callCtx, componentID)
	if err != nil {
		return driver.State{}, classifyAdapterErr(err)
	}
	return state, nil
}

// applyAction executes one physical action with a bounded wait and returns
// the adapter-confirmed state.
func (o *Orchestrator) applyAction(ctx context.Context, componentID int64, act driver.Action) (driver.State, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.opts.ActionTimeout)
	defer cancel()

	state, err := o.adapter.Apply(callCtx, componentID, act)
	if err != nil {
		return driver.State{}, classifyAdapterErr(err)
	}
	return state, nil
}

// classifyAdapterErr maps adapter and context errors onto the command
// error taxonomy.
func classifyAdapterErr(err error) error {
	switch {
	case errors.Is(err, driver.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrAdapterTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrAdapterFailure, err)
	}
}

// lockFor returns the exclusion lock for a component, creating it on
// first use.
func (o *Orchestrator) lockFor(componentID int64) *sync.Mutex {
	o.locksMu.Lock()
	defer o.locksMu.Unlock()

	lock, ok := o.locks[componentID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[componentID] = lock
	}
	return lock
}

// publishResult emits the command outcome on the message bus.
func (o *Orchestrator) publishResult(result *Result) {
	if o.events == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		o.logger.Error("marshalling lifecycle result", "error", err)
		return
	}

	topic := fmt.Sprintf("voltgrid/core/lifecycle/%d", result.ComponentID)
	if err := o.events.Publish(topic, payload, 1, false); err != nil {
		o.logger.Warn("publishing lifecycle result",
			"topic", topic,
			"error", err,
		)
	}
}
