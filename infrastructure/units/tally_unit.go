package units

import (
	"context"
	"fmt"

	"github.com/ahrav/go-scrutin/internal/domain"
	"github.com/ahrav/go-scrutin/internal/ports"
)

var _ ports.Unit = (*TallyUnit)(nil)

// TallyUnit folds validated ballots into one mention histogram per choice.
// It reads KeyScale, KeyChoices and KeyBallots and writes KeyTallies.
// The unit is stateless and thread-safe for concurrent execution.
type TallyUnit struct {
	name string
}

// NewTallyUnit creates a new TallyUnit.
func NewTallyUnit(name string) (*TallyUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	return &TallyUnit{name: name}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *TallyUnit) Name() string { return u.name }

// Validate checks if the unit is properly configured and ready for execution.
func (u *TallyUnit) Validate() error { return nil }

// Execute counts the ballots stored in state.
func (u *TallyUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	scale, ok := domain.Get(state, domain.KeyScale)
	if !ok {
		return state, domain.MissingKey(domain.KeyScale)
	}
	choices, ok := domain.Get(state, domain.KeyChoices)
	if !ok {
		return state, domain.MissingKey(domain.KeyChoices)
	}
	ballots, ok := domain.Get(state, domain.KeyBallots)
	if !ok {
		return state, domain.MissingKey(domain.KeyBallots)
	}

	tallies, err := Tally(scale, len(choices), ballots)
	if err != nil {
		return state, err
	}
	return domain.With(state, domain.KeyTallies, tallies), nil
}

// Tally returns one tally per choice. Every tally holds a zero count for
// each mention of scale, so sum(Counts)+Abstentions equals len(ballots).
func Tally(scale *domain.MentionScale, choices int, ballots []domain.Ballot) ([]domain.Tally, error) {
	tallies := make([]domain.Tally, choices)
	for i := range tallies {
		tallies[i] = domain.NewTally(scale.Size())
	}

	for _, b := range ballots {
		if len(b.Marks) != choices {
			return nil, fmt.Errorf("ballot at row %d has %d marks for %d choices: %w",
				b.Row, len(b.Marks), choices, domain.ErrRowLengthMismatch)
		}
		for c, mark := range b.Marks {
			switch {
			case mark == domain.Abstained:
				tallies[c].Abstentions++
			case mark >= 0 && mark < scale.Size():
				tallies[c].Counts[mark]++
			default:
				return nil, fmt.Errorf("ballot at row %d, choice %d: mark %d: %w",
					b.Row, c, mark, ErrMarkOutOfRange)
			}
		}
	}
	return tallies, nil
}

// NewTallyFromConfig creates a TallyUnit from a configuration map.
// The tally stage has no parameters.
func NewTallyFromConfig(id string, _ map[string]any) (ports.Unit, error) {
	return NewTallyUnit(id)
}
