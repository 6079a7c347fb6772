package component

import "errors"

// Domain errors for the component package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, component.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a component ID does not exist.
	ErrNotFound = errors.New("component: not found")

	// ErrInvalidCategory is returned when a category value is not recognised.
	ErrInvalidCategory = errors.New("component: invalid category")

	// ErrInvalidID is returned when a component ID is not a positive integer.
	ErrInvalidID = errors.New("component: invalid id")

	// ErrDuplicateID is returned when the loaded table contains the same ID twice.
	ErrDuplicateID = errors.New("component: duplicate id")

	// ErrUnknownEndpoint is returned when a connection references a component
	// ID that is not present in the registry.
	ErrUnknownEndpoint = errors.New("component: connection endpoint unknown")
)
