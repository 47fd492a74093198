// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/go-scrutin/internal/domain"
)

// Unit represents one stage of the tabulation pipeline.
// Each Unit reads what it needs from the State, computes, and returns a new
// State carrying its output under a well-known key.
// Units should be stateless and thread-safe for concurrent execution.
type Unit interface {
	// Name returns a unique identifier for this unit.
	// The name is used for logging, metrics labels, and tracing.
	Name() string

	// Execute performs the unit's transformation on the provided State.
	// It returns a new State containing the results of the transformation.
	// The original State must not be modified.
	// Any errors during execution should be returned rather than panicking.
	//
	// The context parameter allows for cancellation and deadline propagation.
	// Units should respect context cancellation and return promptly.
	//
	// Example:
	//
	//	newState, err := unit.Execute(ctx, state)
	//	if err != nil {
	//	    return domain.State{}, fmt.Errorf("unit %s failed: %w", unit.Name(), err)
	//	}
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// Validate checks if the unit is properly configured and ready for execution.
	// It is called when the pipeline is assembled.
	// Return nil if validation passes, or an error describing what is invalid.
	Validate() error
}

// UnitFactory builds a unit from an identifier and a loosely typed
// configuration map, typically decoded from YAML.
type UnitFactory func(id string, config map[string]any) (Unit, error)

// UnitRegistry resolves unit types to factories.
type UnitRegistry interface {
	// CreateUnit builds a unit of the given registered type.
	CreateUnit(unitType, id string, config map[string]any) (Unit, error)

	// RegisterUnitFactory adds or replaces the factory for unitType.
	RegisterUnitFactory(unitType string, factory UnitFactory) error

	// GetSupportedTypes lists the registered unit types.
	GetSupportedTypes() []string
}
