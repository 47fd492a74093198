// Package codec serializes election results into compact, URL-safe tokens
// and parses them back.
//
// A token holds one segment per choice, in input order, joined by "_":
//
//	name~mention~tally~score
//
// The name is query-escaped with "~" and "_" escaped as well, the mention
// is a scale abbreviation, the tally lists every mention strongest first
// as abbreviation followed by count (plus "X<n>" for abstentions), and the
// score carries two decimals.
package codec

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ahrav/go-scrutin/internal/domain"
	"github.com/ahrav/go-scrutin/internal/ports"
)

// Separators used in tokens.
const (
	FieldSeparator  = "~"
	ChoiceSeparator = "_"
)

// Field names reported in decode errors.
const (
	FieldName    = "name"
	FieldMention = "mention"
	FieldTally   = "tally"
	FieldScore   = "score"
)

const fieldsPerSegment = 4

var _ ports.ResultCodec = (*Codec)(nil)

// ErrScaleRequired is returned when a codec is built without a scale.
var ErrScaleRequired = errors.New("codec requires a mention scale")

var nameEscaper = strings.NewReplacer(FieldSeparator, "%7E", ChoiceSeparator, "%5F")

// scorePattern is the decimal shape written by domain.FormatScore. Other
// spellings ParseFloat accepts, such as "0x1p1" or "1_0", are refused.
var scorePattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// Codec encodes and decodes results rated on one mention scale.
// It is immutable and safe for concurrent use.
type Codec struct {
	scale *domain.MentionScale
	lexer *Lexer
}

// New returns a codec bound to scale.
func New(scale *domain.MentionScale) (*Codec, error) {
	if scale == nil {
		return nil, ErrScaleRequired
	}
	return &Codec{scale: scale, lexer: NewLexer(scale)}, nil
}

// Builtin returns codecs for the built-in scales, five mentions first.
func Builtin() []*Codec {
	scales := domain.BuiltinScales()
	out := make([]*Codec, 0, len(scales))
	for _, s := range scales {
		out = append(out, &Codec{scale: s, lexer: NewLexer(s)})
	}
	return out
}

// Scale returns the mention scale the codec is bound to.
func (c *Codec) Scale() *domain.MentionScale { return c.scale }

// Encode serializes result. Choices are written in input order.
func (c *Codec) Encode(result *domain.ScrutinResult) (string, error) {
	if result == nil || len(result.Choices) == 0 {
		return "", fmt.Errorf("encode: %w", domain.ErrEmptyToken)
	}
	if result.Scale != nil && result.Scale.Name() != c.scale.Name() {
		return "", fmt.Errorf("encode: result scale %q, codec scale %q: %w",
			result.Scale.Name(), c.scale.Name(), domain.ErrScaleMismatch)
	}

	segments := make([]string, 0, len(result.Choices))
	for i, choice := range result.Choices {
		segment, err := c.encodeChoice(choice)
		if err != nil {
			return "", fmt.Errorf("encode choice %d (%q): %w", i, choice.Name, err)
		}
		segments = append(segments, segment)
	}
	return strings.Join(segments, ChoiceSeparator), nil
}

func (c *Codec) encodeChoice(choice domain.ChoiceResult) (string, error) {
	if choice.Name == "" {
		return "", domain.ErrInvalidName
	}
	mention, ok := c.scale.Index(choice.MajorityMention)
	if !ok {
		return "", fmt.Errorf("majority mention %q: %w", choice.MajorityMention, domain.ErrInvalidMention)
	}
	if len(choice.Tally.Counts) != c.scale.Size() {
		return "", fmt.Errorf("tally has %d mentions, scale has %d: %w",
			len(choice.Tally.Counts), c.scale.Size(), domain.ErrScaleMismatch)
	}
	if math.IsNaN(choice.Score) || math.IsInf(choice.Score, 0) {
		return "", fmt.Errorf("score %v: %w", choice.Score, domain.ErrInvalidScore)
	}

	var tally strings.Builder
	for i := c.scale.Strongest(); i >= 0; i-- {
		n := choice.Tally.Counts[i]
		if n < 0 {
			return "", fmt.Errorf("count %d for %q: %w", n, c.scale.Label(i), domain.ErrInvalidCount)
		}
		tally.WriteString(c.scale.Abbreviation(i))
		tally.WriteString(strconv.Itoa(n))
	}
	switch {
	case choice.Tally.Abstentions < 0:
		return "", fmt.Errorf("abstention count %d: %w", choice.Tally.Abstentions, domain.ErrInvalidCount)
	case choice.Tally.Abstentions > 0:
		tally.WriteString(domain.AbstentionAbbreviation)
		tally.WriteString(strconv.Itoa(choice.Tally.Abstentions))
	}

	return strings.Join([]string{
		EscapeName(choice.Name),
		c.scale.Abbreviation(mention),
		tally.String(),
		domain.FormatScore(choice.Score),
	}, FieldSeparator), nil
}

// Decode parses token. The ranking, winner and voter count are recomputed
// from the decoded choices; the voter count is the total of the first
// choice, abstentions included. Failures are *domain.DecodeError values.
func (c *Codec) Decode(token string) (*domain.ScrutinResult, error) {
	if token == "" {
		return nil, domain.NewDecodeError(-1, "", "", domain.ErrEmptyToken)
	}

	segments := strings.Split(token, ChoiceSeparator)
	choices := make([]domain.ChoiceResult, 0, len(segments))
	for i, segment := range segments {
		choice, err := c.decodeChoice(i, segment)
		if err != nil {
			return nil, err
		}
		choices = append(choices, choice)
	}

	first := choices[0].Tally
	meta := domain.Metadata{
		Method: domain.DefaultMethod,
		Voters: first.Total() + first.Abstentions,
	}
	return domain.NewScrutinResult(c.scale, choices, meta), nil
}

func (c *Codec) decodeChoice(seg int, segment string) (domain.ChoiceResult, error) {
	fields := strings.Split(segment, FieldSeparator)
	switch {
	case len(fields) < fieldsPerSegment:
		return domain.ChoiceResult{}, domain.NewDecodeError(seg, "", segment, domain.ErrMissingField)
	case len(fields) > fieldsPerSegment:
		return domain.ChoiceResult{}, domain.NewDecodeError(seg, "", segment, domain.ErrUnexpectedField)
	}

	name, err := UnescapeName(fields[0])
	if err != nil {
		return domain.ChoiceResult{}, domain.NewDecodeError(seg, FieldName, fields[0], domain.ErrInvalidName)
	}

	mention, ok := c.scale.IndexOfAbbreviation(fields[1])
	if !ok {
		return domain.ChoiceResult{}, domain.NewDecodeError(seg, FieldMention, fields[1], domain.ErrUnknownAbbreviation)
	}

	tally, err := c.decodeTally(fields[2])
	if err != nil {
		var lexErr *LexError
		if errors.As(err, &lexErr) {
			err = lexErr.Err
		}
		return domain.ChoiceResult{}, domain.NewDecodeError(seg, FieldTally, fields[2], err)
	}

	if !scorePattern.MatchString(fields[3]) {
		return domain.ChoiceResult{}, domain.NewDecodeError(seg, FieldScore, fields[3], domain.ErrInvalidScore)
	}
	score, err := strconv.ParseFloat(fields[3], 64)
	if err != nil || math.IsNaN(score) || math.IsInf(score, 0) {
		return domain.ChoiceResult{}, domain.NewDecodeError(seg, FieldScore, fields[3], domain.ErrInvalidScore)
	}

	return domain.ChoiceResult{
		Name:            name,
		MajorityMention: c.scale.Label(mention),
		MajorityIndex:   mention,
		Score:           score,
		Tally:           tally,
		Degenerate:      tally.Count(mention) == 0,
	}, nil
}

// decodeTally lexes a tally field. Mentions missing from the field count
// as zero.
func (c *Codec) decodeTally(field string) (domain.Tally, error) {
	entries, err := c.lexer.Lex(field)
	if err != nil {
		return domain.Tally{}, err
	}
	tally := domain.NewTally(c.scale.Size())
	for _, e := range entries {
		if e.Mention == domain.Abstained {
			tally.Abstentions = e.Count
			continue
		}
		tally.Counts[e.Mention] = e.Count
	}
	return tally, nil
}

// Detect returns the first codec able to decode token, along with the
// decoded result. When none succeeds the error of the first codec is
// returned.
func Detect(token string, codecs ...*Codec) (*Codec, *domain.ScrutinResult, error) {
	if len(codecs) == 0 {
		return nil, nil, ErrScaleRequired
	}
	var firstErr error
	for _, c := range codecs {
		result, err := c.Decode(token)
		if err == nil {
			return c, result, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, nil, firstErr
}

// EscapeName query-escapes a choice name so that it contains neither
// separator. Spaces become "+".
func EscapeName(name string) string {
	return nameEscaper.Replace(url.QueryEscape(name))
}

// UnescapeName reverses EscapeName. An empty name is invalid.
func UnescapeName(escaped string) (string, error) {
	name, err := url.QueryUnescape(escaped)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", domain.ErrInvalidName
	}
	return name, nil
}
