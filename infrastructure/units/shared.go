// Package units provides the tabulation stages that implement the
// ports.Unit interface for the go-scrutin engine.
package units

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Common errors returned by tabulation units.
var (
	// ErrEmptyUnitName is returned when attempting to create a unit with an empty name.
	ErrEmptyUnitName = errors.New("unit name cannot be empty")

	// ErrTallyMismatch is returned when tallies and choices are not aligned.
	ErrTallyMismatch = errors.New("tallies and choices length mismatch")

	// ErrMarkOutOfRange is returned when a ballot mark is not a scale position.
	ErrMarkOutOfRange = errors.New("ballot mark out of range")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// decodeConfig overlays a loosely typed configuration map onto cfg by
// round-tripping it through YAML, so that yaml struct tags drive the
// mapping for every unit.
func decodeConfig(config map[string]any, cfg any) error {
	if len(config) == 0 {
		return nil
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
