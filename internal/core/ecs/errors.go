package ecs

import "errors"

var (
	// ErrUnknownID is returned by lookups against an id with no live binding.
	ErrUnknownID = errors.New("unknown id")

	// ErrDuplicateComponent is returned when adding a component to an entity
	// that already has one of that type.
	ErrDuplicateComponent = errors.New("duplicate component")

	// ErrComponentNotFound is returned when removing or resolving a component
	// the entity does not have.
	ErrComponentNotFound = errors.New("component not found")

	// ErrInvalidTransition is returned when a lifecycle operation is called on
	// an entity that is not in the expected prior stage.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrEntityCreation wraps any failure between allocation and start. The
	// half-built entity has already been deleted when this is returned.
	ErrEntityCreation = errors.New("entity creation failed")

	// ErrStructuralInconsistency classifies hierarchy repairs: a child
	// reference to an entity that is already gone. Logged and self-healed,
	// never fatal.
	ErrStructuralInconsistency = errors.New("structural inconsistency")
)
