package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-scrutin/internal/domain"
	"github.com/ahrav/go-scrutin/internal/ports"
)

// DefaultBaseURL is the public address share links point to.
const DefaultBaseURL = "https://eqx-scrutin.vercel.app"

// Config is the complete runtime configuration of go-scrutin and the
// primary configuration entry point for the CLI and the HTTP server.
type Config struct {
	// Scrutin holds the tabulation policies applied to every ballot set.
	Scrutin ScrutinConfig `yaml:"scrutin" validate:"required"`
	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server" validate:"required"`
	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging" validate:"required"`
}

// ScrutinConfig defines how ballots are validated and how results are
// composed. Its fields map onto the parameters of the pipeline stages.
type ScrutinConfig struct {
	// Scale forces the mention scale size (5 or 6). Zero infers the scale
	// from the ballots.
	Scale int `yaml:"scale" validate:"scalesize"`
	// EmptyCell decides what an empty ballot cell means:
	// reject, abstain, or middle.
	EmptyCell string `yaml:"empty_cell" validate:"required,oneof=reject abstain middle"`
	// SuggestionDistance bounds the edit distance of "did you mean"
	// hints attached to invalid mentions. Zero disables them.
	SuggestionDistance int `yaml:"suggestion_distance" validate:"min=0,max=5"`
	// LenientScale accepts ballots using only part of the declared scale.
	// Without it the ballots must use exactly 5 or 6 distinct mentions.
	LenientScale bool `yaml:"lenient_scale"`
	// DegeneratePolicy scores choices with no vote on their majority
	// mention: clamp or majority.
	DegeneratePolicy string `yaml:"degenerate_policy" validate:"required,oneof=clamp majority"`
	// Method is the counting method reported in result metadata.
	Method string `yaml:"method" validate:"required,max=100"`
	// Concurrency bounds the number of ballot sets tabulated at once by
	// batch operations.
	Concurrency int `yaml:"concurrency" validate:"min=1,max=64"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr" validate:"required,listenaddr"`
	// BaseURL prefixes the share links returned to clients.
	BaseURL string `yaml:"base_url" validate:"required,url"`
	// MaxUploadBytes caps the size of an uploaded ballot file.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" validate:"min=1024,max=104857600"`
	// RateLimit is the sustained number of requests per second allowed
	// per client. Zero disables rate limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"min=0,max=10000"`
	// Burst is the number of requests a client may issue at once.
	Burst int `yaml:"burst" validate:"min=0,max=10000"`
	// ShutdownTimeoutSeconds bounds graceful shutdown.
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds" validate:"min=1,max=300"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum level logged: debug, info, warn or error.
	Level string `yaml:"level" validate:"required,oneof=debug info warn error"`
	// Format selects the handler: text or json.
	Format string `yaml:"format" validate:"required,oneof=text json"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Scrutin: ScrutinConfig{
			EmptyCell:          "reject",
			SuggestionDistance: 2,
			DegeneratePolicy:   "clamp",
			Method:             domain.DefaultMethod,
			Concurrency:        4,
		},
		Server: ServerConfig{
			Addr:                   ":8080",
			BaseURL:                DefaultBaseURL,
			MaxUploadBytes:         10 << 20,
			RateLimit:              5,
			Burst:                  10,
			ShutdownTimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads a YAML file and overlays it on DefaultConfig.
// Environment overrides are applied before validation.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ports.NewConfigError(cleanPath, ports.ErrConfigNotFound)
		}
		return nil, ports.NewConfigError(cleanPath, err)
	}

	cfg, err := LoadConfigFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, ports.NewConfigError(cleanPath, err)
	}
	return cfg, nil
}

// LoadConfigFromReader decodes YAML from r over DefaultConfig, applies
// environment overrides and validates the result. Unknown fields are
// rejected so typos are not silently ignored.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides configuration from the environment. PORT sets the
// listen port, SCRUTIN_BASE_URL the share link prefix.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if port, ok := lookup("PORT"); ok && port != "" {
		c.Server.Addr = ":" + port
	}
	if base, ok := lookup("SCRUTIN_BASE_URL"); ok && base != "" {
		c.Server.BaseURL = base
	}
}

// Validate checks every field against its struct tags and returns a
// *domain.ValidationError listing each violation.
func (c *Config) Validate() error {
	v, err := newConfigValidator()
	if err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("config validation: %w", err)
		}
		verr := domain.NewValidationError("config")
		for _, fe := range fieldErrs {
			verr.AddError(fmt.Sprintf("%s failed on %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return verr
	}
	return nil
}

// ValidatorParameters returns the ballot_validator stage parameters.
func (s ScrutinConfig) ValidatorParameters() map[string]any {
	return map[string]any{
		"declared_scale":      s.Scale,
		"empty_cell":          s.EmptyCell,
		"suggestion_distance": s.SuggestionDistance,
		"lenient_scale":       s.LenientScale,
	}
}

// ComposerParameters returns the majority_judgment stage parameters.
func (s ScrutinConfig) ComposerParameters() map[string]any {
	return map[string]any{
		"degenerate_policy": s.DegeneratePolicy,
		"method":            s.Method,
	}
}
