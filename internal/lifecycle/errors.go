package lifecycle

import "errors"

// Domain errors for the lifecycle package.
//
// Together with component.ErrNotFound these form the command error
// taxonomy. Each outcome is distinct and inspectable with errors.Is();
// none is ever collapsed into a generic failure.
var (
	// ErrUnsupportedOperation is returned when the component's category
	// has no action plan for the requested command.
	ErrUnsupportedOperation = errors.New("lifecycle: unsupported operation")

	// ErrPreconditionFailed is returned when a required state check fails.
	// Steps already executed before the failing check remain applied; there
	// is no rollback.
	ErrPreconditionFailed = errors.New("lifecycle: precondition failed")

	// ErrAdapterTimeout is returned when a bounded wait on a physical
	// action or state read is exceeded.
	ErrAdapterTimeout = errors.New("lifecycle: adapter timeout")

	// ErrAdapterFailure is returned when the adapter reports an execution
	// error.
	ErrAdapterFailure = errors.New("lifecycle: adapter failure")

	// ErrBusy is returned when another command for the same component is
	// in flight and the orchestrator is configured to reject rather than
	// queue.
	ErrBusy = errors.New("lifecycle: component busy")

	// ErrInvalidArgument is returned for malformed command parameters,
	// e.g. a negative power level.
	ErrInvalidArgument = errors.New("lifecycle: invalid argument")
)
