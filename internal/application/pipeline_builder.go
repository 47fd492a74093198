package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-scrutin/internal/ports"
)

// Stage type names understood by DefaultUnitRegistry.
const (
	StageBallotValidator  = "ballot_validator"
	StageTally            = "tally"
	StageMajorityJudgment = "majority_judgment"
	StageTokenEncoder     = "token_encoder"
)

// StageSpec declares one pipeline stage: the unit type to instantiate,
// its identifier, and its type-specific parameters.
type StageSpec struct {
	ID         string         `yaml:"id"`
	Type       string         `yaml:"type"`
	Parameters map[string]any `yaml:"parameters,omitempty"`
}

// StagesFromConfig returns the tabulation stages in execution order:
// validation, tally, majority judgment, and token encoding.
func StagesFromConfig(cfg ScrutinConfig) []StageSpec {
	return []StageSpec{
		{ID: StageBallotValidator, Type: StageBallotValidator, Parameters: cfg.ValidatorParameters()},
		{ID: StageTally, Type: StageTally},
		{ID: StageMajorityJudgment, Type: StageMajorityJudgment, Parameters: cfg.ComposerParameters()},
		{ID: StageTokenEncoder, Type: StageTokenEncoder},
	}
}

// UnitWrapper decorates every unit the builder creates, e.g. with tracing.
type UnitWrapper func(ports.Unit) ports.Unit

// PipelineBuilder turns stage declarations into executable pipelines.
// Compiled pipelines are cached by the SHA256 hash of their normalized
// declaration. Stages are stateless, so a cached pipeline may be shared by
// concurrent callers.
type PipelineBuilder struct {
	// unitRegistry creates units from their type and parameters.
	unitRegistry ports.UnitRegistry
	// wrap is applied to each created unit; nil leaves units as built.
	wrap UnitWrapper
	// cache stores compiled pipelines by declaration hash.
	// Cached pipelines MUST NOT be mutated with Add.
	cache   map[string]*Pipeline
	cacheMu sync.RWMutex
	// sf prevents duplicate compilation when several goroutines request the
	// same pipeline at once.
	sf singleflight.Group
}

// NewPipelineBuilder creates a builder backed by unitRegistry.
func NewPipelineBuilder(unitRegistry ports.UnitRegistry, wrap UnitWrapper) (*PipelineBuilder, error) {
	if unitRegistry == nil {
		return nil, fmt.Errorf("unit registry is required")
	}
	return &PipelineBuilder{
		unitRegistry: unitRegistry,
		wrap:         wrap,
		cache:        make(map[string]*Pipeline),
	}, nil
}

// Build compiles stages into a Pipeline identified by id.
// WARNING: The returned pipeline may be a cached instance. Callers MUST NOT
// call Add on it.
func (b *PipelineBuilder) Build(ctx context.Context, id string, stages []StageSpec) (*Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateStages(stages); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	hash, err := stagesHash(id, stages)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := b.sf.Do(hash, func() (any, error) {
		if pipeline, ok := b.cached(hash); ok {
			return pipeline, nil
		}

		pipeline, err := b.build(id, stages)
		if err != nil {
			return nil, err
		}

		b.cacheMu.Lock()
		b.cache[hash] = pipeline
		b.cacheMu.Unlock()
		return pipeline, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Pipeline), nil
}

// ClearCache drops every compiled pipeline.
func (b *PipelineBuilder) ClearCache() {
	b.cacheMu.Lock()
	defer b.cacheMu.Unlock()
	b.cache = make(map[string]*Pipeline)
}

func (b *PipelineBuilder) build(id string, stages []StageSpec) (*Pipeline, error) {
	pipeline := NewPipeline(id)
	for _, stage := range stages {
		params := make(map[string]any, len(stage.Parameters))
		for k, v := range stage.Parameters {
			params[k] = v
		}

		unit, err := b.unitRegistry.CreateUnit(stage.Type, stage.ID, params)
		if err != nil {
			return nil, fmt.Errorf("failed to create unit %s: %w", stage.ID, err)
		}
		if err := unit.Validate(); err != nil {
			return nil, fmt.Errorf("unit %s is invalid: %w", stage.ID, err)
		}
		if b.wrap != nil {
			unit = b.wrap(unit)
		}
		if err := pipeline.Add(NewUnitAdapter(unit, stage.ID)); err != nil {
			return nil, fmt.Errorf("failed to add unit to pipeline: %w", err)
		}
	}
	return pipeline, nil
}

func (b *PipelineBuilder) cached(hash string) (*Pipeline, bool) {
	b.cacheMu.RLock()
	defer b.cacheMu.RUnlock()
	pipeline, ok := b.cache[hash]
	return pipeline, ok
}

// validateStages checks the declaration for rules the registry cannot see:
// a non-empty stage list with unique, non-empty IDs and types.
func validateStages(stages []StageSpec) error {
	if len(stages) == 0 {
		return fmt.Errorf("pipeline has no stages")
	}
	seen := make(map[string]struct{}, len(stages))
	for i, stage := range stages {
		if stage.ID == "" {
			return fmt.Errorf("stage %d has no id", i)
		}
		if stage.Type == "" {
			return fmt.Errorf("stage %s has no type", stage.ID)
		}
		if _, dup := seen[stage.ID]; dup {
			return fmt.Errorf("duplicate stage id %q", stage.ID)
		}
		seen[stage.ID] = struct{}{}
	}
	return nil
}

// stagesHash computes the SHA256 of the normalized YAML rendering of the
// declaration. yaml.v3 sorts map keys, so parameter order does not matter.
func stagesHash(id string, stages []StageSpec) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	doc := struct {
		ID     string      `yaml:"id"`
		Stages []StageSpec `yaml:"stages"`
	}{ID: id, Stages: stages}
	if err := encoder.Encode(doc); err != nil {
		return "", fmt.Errorf("failed to encode stages for hashing: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return "", err
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}
