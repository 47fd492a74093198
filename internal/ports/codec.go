package ports

import "github.com/ahrav/go-scrutin/internal/domain"

// ResultCodec turns a result into a compact, URL-safe token and back.
// Decode(Encode(r)) must reproduce every choice name, majority mention,
// tally and two-decimal score of r, in input order.
type ResultCodec interface {
	// Encode serializes a result. It fails when the result does not fit
	// the codec's mention scale.
	Encode(result *domain.ScrutinResult) (string, error)

	// Decode parses a token. Failures are reported as *domain.DecodeError.
	Decode(token string) (*domain.ScrutinResult, error)

	// Scale returns the mention scale the codec is bound to.
	Scale() *domain.MentionScale
}
