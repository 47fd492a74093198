// Package middleware provides cross-cutting concerns for the tallying engine.
// It implements the middleware/wrapper pattern to keep the tabulation stages
// free of tracing and metrics code.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahrav/go-scrutin/internal/domain"
	"github.com/ahrav/go-scrutin/internal/ports"
)

var _ ports.Unit = (*ObservedUnit)(nil)

// UnitObserver provides observability hooks around a stage execution.
// Implementations can add tracing, metrics, and logging without coupling
// them to the stage itself.
type UnitObserver interface {
	// PreExecute is called before the stage runs. The returned context is
	// passed to the stage and to PostExecute.
	PreExecute(ctx context.Context, unit string, state domain.State) context.Context

	// PostExecute is called after the stage returns with its output state,
	// timing, and error.
	PostExecute(ctx context.Context, unit string, state domain.State, elapsed time.Duration, err error)
}

// ObservedUnit wraps a pipeline stage with a UnitObserver. It keeps no
// mutable state of its own and is safe for concurrent use when the wrapped
// unit and the observer are.
type ObservedUnit struct {
	// next holds the wrapped stage.
	next ports.Unit

	// observer receives the execution hooks.
	observer UnitObserver
}

// NewObservedUnit wraps next with observer.
func NewObservedUnit(next ports.Unit, observer UnitObserver) *ObservedUnit {
	if next == nil {
		panic("observed unit: next unit is required")
	}
	return &ObservedUnit{next: next, observer: observer}
}

// Name returns the wrapped stage's name so pipelines and registries see
// the same identifier with or without observation.
func (o *ObservedUnit) Name() string { return o.next.Name() }

// Unwrap returns the wrapped stage.
func (o *ObservedUnit) Unwrap() ports.Unit { return o.next }

// Execute runs the wrapped stage between the observer hooks.
func (o *ObservedUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	if o.observer == nil {
		return o.next.Execute(ctx, state)
	}

	name := o.next.Name()
	ctx = o.observer.PreExecute(ctx, name, state)

	start := time.Now()
	newState, err := o.next.Execute(ctx, state)
	o.observer.PostExecute(ctx, name, newState, time.Since(start), err)

	return newState, err
}

// Validate checks the wrapped stage.
func (o *ObservedUnit) Validate() error {
	if o.next == nil {
		return fmt.Errorf("observed unit: next unit is required")
	}
	return o.next.Validate()
}

// RejectionReason maps a stage error to a short, low-cardinality label
// suitable for metrics. Unknown errors map to "internal".
func RejectionReason(err error) string {
	var formatErr *domain.FormatError
	if errors.As(err, &formatErr) && formatErr.Err != nil {
		return formatErr.Err.Error()
	}
	var decodeErr *domain.DecodeError
	if errors.As(err, &decodeErr) && decodeErr.Err != nil {
		return decodeErr.Err.Error()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "internal"
}
