package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/ahrav/go-scrutin/internal/domain"
	"github.com/ahrav/go-scrutin/internal/ports"
)

var (
	_ ports.Pipeline   = (*Pipeline)(nil)
	_ ports.Executable = (*UnitAdapter)(nil)
)

// Pipeline is a sequential execution container that runs the tabulation
// stages in strict order, where each stage's output state becomes the input
// of the next.
type Pipeline struct {
	// id identifies the pipeline in error messages and logs.
	id string
	// executables contains the ordered list of stages.
	executables []ports.Executable
	// idSet tracks executable IDs for O(1) duplicate detection.
	idSet map[string]struct{}
	// mu provides thread-safe access to the executables slice.
	mu sync.RWMutex
}

// NewPipeline creates an empty pipeline with the specified identifier.
func NewPipeline(id string) *Pipeline {
	return &Pipeline{
		id:          id,
		executables: make([]ports.Executable, 0),
		idSet:       make(map[string]struct{}),
	}
}

// Execute runs every stage sequentially, passing the output state of one
// stage to the next. Cancellation is checked between stages. A failing
// stage stops the pipeline and its error is wrapped with the stage ID.
func (p *Pipeline) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	p.mu.RLock()
	executables := make([]ports.Executable, len(p.executables))
	copy(executables, p.executables)
	p.mu.RUnlock()

	currentState := state
	for _, exec := range executables {
		select {
		case <-ctx.Done():
			return currentState, ctx.Err()
		default:
			newState, err := exec.Execute(ctx, currentState)
			if err != nil {
				return currentState, fmt.Errorf("pipeline %s: execution failed at %s: %w", p.id, exec.ID(), err)
			}
			currentState = newState
		}
	}

	return currentState, nil
}

// ID returns the pipeline identifier.
func (p *Pipeline) ID() string { return p.id }

// Add appends an executable to the end of the pipeline. It returns an
// error if the executable is nil or if its ID is already taken.
// Add is safe for concurrent use with Execute.
func (p *Pipeline) Add(exec ports.Executable) error {
	if exec == nil {
		return fmt.Errorf("cannot add nil executable to pipeline")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	execID := exec.ID()
	if _, exists := p.idSet[execID]; exists {
		return fmt.Errorf("executable with ID %s already exists in pipeline", execID)
	}

	p.executables = append(p.executables, exec)
	p.idSet[execID] = struct{}{}
	return nil
}

// Executables returns a copy of the ordered stage list.
func (p *Pipeline) Executables() []ports.Executable {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ports.Executable, len(p.executables))
	copy(result, p.executables)
	return result
}

// UnitAdapter wraps a ports.Unit to implement ports.Executable so units
// can be sequenced by a Pipeline.
type UnitAdapter struct {
	// unit performs the actual work when Execute is called.
	unit ports.Unit
	// id is the stage identifier within the pipeline.
	id string
}

// NewUnitAdapter creates an adapter that exposes unit under id.
func NewUnitAdapter(unit ports.Unit, id string) *UnitAdapter {
	return &UnitAdapter{
		unit: unit,
		id:   id,
	}
}

// Execute delegates to the wrapped unit.
func (ua *UnitAdapter) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	return ua.unit.Execute(ctx, state)
}

// ID returns the stage identifier.
func (ua *UnitAdapter) ID() string { return ua.id }

// Unit returns the wrapped unit.
func (ua *UnitAdapter) Unit() ports.Unit { return ua.unit }
