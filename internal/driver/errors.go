package driver

import "errors"

// Domain errors for adapter implementations. Bridges wrap protocol-level
// failures in one of these so callers can classify outcomes with errors.Is().
var (
	// ErrTimeout is returned when a physical action or state read exceeds
	// its bounded wait.
	ErrTimeout = errors.New("driver: adapter timeout")

	// ErrFailure is returned when the adapter reports an execution error.
	ErrFailure = errors.New("driver: adapter failure")

	// ErrUnknownComponent is returned when the adapter has no route for
	// the component ID.
	ErrUnknownComponent = errors.New("driver: unknown component")
)
