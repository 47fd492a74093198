package units

import (
	"context"
	"fmt"

	"github.com/ahrav/go-scrutin/internal/domain"
	"github.com/ahrav/go-scrutin/internal/ports"
)

var _ ports.Unit = (*ComposerUnit)(nil)

// ComposerConfig defines the configuration parameters for the ComposerUnit.
type ComposerConfig struct {
	// DegeneratePolicy scores choices with no vote on their majority mention.
	// Options: "clamp" (m ± 0.5 toward the larger side), "majority" (exactly m).
	DegeneratePolicy DegeneratePolicy `yaml:"degenerate_policy" json:"degenerate_policy" validate:"required,oneof=clamp majority"`

	// Method is the counting method reported in the result metadata.
	Method string `yaml:"method" json:"method" validate:"required"`
}

// DefaultComposerConfig returns a ComposerConfig with sensible defaults.
func DefaultComposerConfig() ComposerConfig {
	return ComposerConfig{
		DegeneratePolicy: DegenerateClamp,
		Method:           domain.DefaultMethod,
	}
}

// ComposerUnit resolves the majority mention and score of every choice
// and assembles the ranked result.
// It reads KeyScale, KeyChoices, KeyTallies and KeyBallots and writes
// KeyResult. The unit is stateless and thread-safe for concurrent execution.
type ComposerUnit struct {
	name   string
	config ComposerConfig
}

// NewComposerUnit creates a new ComposerUnit with the specified configuration.
func NewComposerUnit(name string, config ComposerConfig) (*ComposerUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &ComposerUnit{name: name, config: config}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *ComposerUnit) Name() string { return u.name }

// Validate checks if the unit is properly configured and ready for execution.
func (u *ComposerUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// Execute composes the result from the tallies stored in state.
func (u *ComposerUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	scale, ok := domain.Get(state, domain.KeyScale)
	if !ok {
		return state, domain.MissingKey(domain.KeyScale)
	}
	choices, ok := domain.Get(state, domain.KeyChoices)
	if !ok {
		return state, domain.MissingKey(domain.KeyChoices)
	}
	tallies, ok := domain.Get(state, domain.KeyTallies)
	if !ok {
		return state, domain.MissingKey(domain.KeyTallies)
	}
	ballots, ok := domain.Get(state, domain.KeyBallots)
	if !ok {
		return state, domain.MissingKey(domain.KeyBallots)
	}

	result, err := u.Compose(scale, choices, tallies, len(ballots))
	if err != nil {
		return state, err
	}
	return domain.With(state, domain.KeyResult, result), nil
}

// Compose scores every choice and ranks them, highest score first, with
// input order breaking exact ties. voters is the number of ballots.
func (u *ComposerUnit) Compose(
	scale *domain.MentionScale,
	choices []string,
	tallies []domain.Tally,
	voters int,
) (*domain.ScrutinResult, error) {
	if len(choices) != len(tallies) {
		return nil, fmt.Errorf("%w: choices=%d, tallies=%d", ErrTallyMismatch, len(choices), len(tallies))
	}

	results := make([]domain.ChoiceResult, len(choices))
	for i, name := range choices {
		if len(tallies[i].Counts) != scale.Size() {
			return nil, fmt.Errorf("tally of %q has %d mentions, scale has %d: %w",
				name, len(tallies[i].Counts), scale.Size(), domain.ErrScaleMismatch)
		}
		m := MajorityMention(scale, tallies[i])
		detail := Score(m, tallies[i], u.config.DegeneratePolicy)
		results[i] = domain.ChoiceResult{
			Name:            name,
			MajorityMention: scale.Label(m),
			MajorityIndex:   m,
			Score:           detail.Score,
			Tally:           tallies[i],
			Degenerate:      detail.Degenerate,
		}
	}

	return domain.NewScrutinResult(scale, results, domain.Metadata{
		Method: u.config.Method,
		Voters: voters,
	}), nil
}

// NewComposerFromConfig creates a ComposerUnit from a configuration map.
// This is the boundary adapter for YAML/JSON configuration.
func NewComposerFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg := DefaultComposerConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewComposerUnit(id, cfg)
}
