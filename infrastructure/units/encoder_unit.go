package units

import (
	"context"
	"fmt"

	"github.com/ahrav/go-scrutin/infrastructure/codec"
	"github.com/ahrav/go-scrutin/internal/domain"
	"github.com/ahrav/go-scrutin/internal/ports"
)

var _ ports.Unit = (*EncoderUnit)(nil)

// CodecFactory binds a result codec to a mention scale.
type CodecFactory func(scale *domain.MentionScale) (ports.ResultCodec, error)

// DefaultCodecFactory builds the token codec of package codec.
func DefaultCodecFactory(scale *domain.MentionScale) (ports.ResultCodec, error) {
	return codec.New(scale)
}

// EncoderUnit serializes the composed result into a share token.
// It reads KeyResult and writes KeyToken.
type EncoderUnit struct {
	name     string
	newCodec CodecFactory
}

// NewEncoderUnit creates a new EncoderUnit. A nil factory selects
// DefaultCodecFactory.
func NewEncoderUnit(name string, newCodec CodecFactory) (*EncoderUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if newCodec == nil {
		newCodec = DefaultCodecFactory
	}
	return &EncoderUnit{name: name, newCodec: newCodec}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *EncoderUnit) Name() string { return u.name }

// Validate checks if the unit is properly configured and ready for execution.
func (u *EncoderUnit) Validate() error {
	if u.newCodec == nil {
		return fmt.Errorf("codec factory is required")
	}
	return nil
}

// Execute encodes the result stored in state with a codec bound to the
// result's scale.
func (u *EncoderUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	result, ok := domain.Get(state, domain.KeyResult)
	if !ok {
		return state, domain.MissingKey(domain.KeyResult)
	}
	if result.Scale == nil {
		return state, fmt.Errorf("result has no scale: %w", domain.ErrInvalidState)
	}

	c, err := u.newCodec(result.Scale)
	if err != nil {
		return state, fmt.Errorf("build codec: %w", err)
	}
	token, err := c.Encode(result)
	if err != nil {
		return state, err
	}
	return domain.With(state, domain.KeyToken, token), nil
}

// NewEncoderFromConfig creates an EncoderUnit from a configuration map.
// The encoder has no parameters.
func NewEncoderFromConfig(id string, _ map[string]any) (ports.Unit, error) {
	return NewEncoderUnit(id, nil)
}
