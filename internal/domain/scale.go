package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Scale sizes supported by the engine.
const (
	FiveMentions = 5
	SixMentions  = 6
)

// Abstention is a display-only pseudo-mention. It never takes part in
// majority or score computation.
const (
	AbstentionLabel        = "Abstention"
	AbstentionAbbreviation = "X"

	// Abstained marks a ballot cell that counts as an abstention.
	Abstained = -1
)

// MentionScale is an ordered, immutable vocabulary of mention labels,
// weakest first. Every label carries a short abbreviation used by the
// result codec. Scales are values bound at construction; the five and six
// mention variants are two configured instances of the same type.
type MentionScale struct {
	name     string
	labels   []string
	abbrevs  []string
	middle   int
	byLabel  map[string]int
	byAbbrev map[string]int
}

// NewMentionScale builds a scale from labels and abbreviations given
// weakest first. middle names the fallback mention used when a tally has
// no votes.
func NewMentionScale(name string, labels, abbreviations []string, middle string) (*MentionScale, error) {
	verr := NewValidationError("MentionScale")
	if name == "" {
		verr.AddError("name is required")
	}
	if len(labels) != FiveMentions && len(labels) != SixMentions {
		verr.AddError(fmt.Sprintf("scale must have %d or %d mentions, got %d", FiveMentions, SixMentions, len(labels)))
	}
	if len(abbreviations) != len(labels) {
		verr.AddError(fmt.Sprintf("got %d abbreviations for %d mentions", len(abbreviations), len(labels)))
	}
	if verr.HasErrors() {
		return nil, verr
	}

	s := &MentionScale{
		name:     name,
		labels:   make([]string, len(labels)),
		abbrevs:  make([]string, len(abbreviations)),
		middle:   -1,
		byLabel:  make(map[string]int, len(labels)),
		byAbbrev: make(map[string]int, len(abbreviations)),
	}
	for i, l := range labels {
		label := NormalizeLabel(l)
		if label == "" {
			verr.AddError(fmt.Sprintf("mention %d is empty", i))
			continue
		}
		if label == AbstentionLabel {
			verr.AddError(fmt.Sprintf("mention %q is reserved", label))
			continue
		}
		if _, dup := s.byLabel[label]; dup {
			verr.AddError(fmt.Sprintf("duplicate mention %q", label))
			continue
		}
		s.labels[i] = label
		s.byLabel[label] = i
	}
	for i, a := range abbreviations {
		if !validAbbreviation(a) {
			verr.AddError(fmt.Sprintf("abbreviation %q must be one or two upper-case letters", a))
			continue
		}
		if a == AbstentionAbbreviation {
			verr.AddError(fmt.Sprintf("abbreviation %q is reserved", a))
			continue
		}
		if _, dup := s.byAbbrev[a]; dup {
			verr.AddError(fmt.Sprintf("duplicate abbreviation %q", a))
			continue
		}
		s.abbrevs[i] = a
		s.byAbbrev[a] = i
	}
	if idx, ok := s.byLabel[NormalizeLabel(middle)]; ok {
		s.middle = idx
	} else {
		verr.AddError(fmt.Sprintf("middle mention %q is not part of the scale", middle))
	}

	if verr.HasErrors() {
		return nil, verr
	}
	return s, nil
}

func validAbbreviation(a string) bool {
	if len(a) == 0 || len(a) > 2 {
		return false
	}
	for i := 0; i < len(a); i++ {
		if a[i] < 'A' || a[i] > 'Z' {
			return false
		}
	}
	return true
}

// FiveMentionScale returns the legacy scale
// [À rejeter, Insuffisant, Passable, Bien, Excellent].
func FiveMentionScale() *MentionScale {
	return mustScale(NewMentionScale(
		"five",
		[]string{"À rejeter", "Insuffisant", "Passable", "Bien", "Excellent"},
		[]string{"R", "I", "P", "B", "E"},
		"Passable",
	))
}

// SixMentionScale returns the scale
// [À rejeter, Insuffisant, Passable, Assez bien, Bien, Très bien].
func SixMentionScale() *MentionScale {
	return mustScale(NewMentionScale(
		"six",
		[]string{"À rejeter", "Insuffisant", "Passable", "Assez bien", "Bien", "Très bien"},
		[]string{"R", "I", "P", "AB", "B", "TB"},
		"Passable",
	))
}

// ScaleOfSize returns the built-in scale with n mentions.
func ScaleOfSize(n int) (*MentionScale, bool) {
	switch n {
	case FiveMentions:
		return FiveMentionScale(), true
	case SixMentions:
		return SixMentionScale(), true
	default:
		return nil, false
	}
}

// BuiltinScales returns the built-in scales, smallest first.
func BuiltinScales() []*MentionScale {
	return []*MentionScale{FiveMentionScale(), SixMentionScale()}
}

func mustScale(s *MentionScale, err error) *MentionScale {
	if err != nil {
		panic(err)
	}
	return s
}

// NormalizeLabel trims a raw mention and puts it in Unicode NFC form so
// that decomposed accents compare equal to their composed spelling.
func NormalizeLabel(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Name returns the scale identifier.
func (s *MentionScale) Name() string { return s.name }

// Size returns the number of mentions.
func (s *MentionScale) Size() int { return len(s.labels) }

// Labels returns a copy of the labels, weakest first.
func (s *MentionScale) Labels() []string {
	out := make([]string, len(s.labels))
	copy(out, s.labels)
	return out
}

// Label returns the label at position i.
func (s *MentionScale) Label(i int) string { return s.labels[i] }

// Abbreviation returns the codec abbreviation of the mention at position i.
func (s *MentionScale) Abbreviation(i int) string { return s.abbrevs[i] }

// Index returns the position of label, matching after normalization.
func (s *MentionScale) Index(label string) (int, bool) {
	i, ok := s.byLabel[NormalizeLabel(label)]
	return i, ok
}

// Contains reports whether label is a member of the scale.
func (s *MentionScale) Contains(label string) bool {
	_, ok := s.Index(label)
	return ok
}

// IndexOfAbbreviation resolves an abbreviation to a mention position.
func (s *MentionScale) IndexOfAbbreviation(abbrev string) (int, bool) {
	i, ok := s.byAbbrev[abbrev]
	return i, ok
}

// Middle returns the position of the fallback mention.
func (s *MentionScale) Middle() int { return s.middle }

// MiddleLabel returns the fallback mention.
func (s *MentionScale) MiddleLabel() string { return s.labels[s.middle] }

// Strongest returns the position of the strongest mention.
func (s *MentionScale) Strongest() int { return len(s.labels) - 1 }

func (s *MentionScale) String() string {
	return fmt.Sprintf("%s%v", s.name, s.labels)
}

// MarshalJSON renders the scale as its name and ordered mentions.
func (s *MentionScale) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name     string   `json:"name"`
		Mentions []string `json:"mentions"`
	}{Name: s.name, Mentions: s.labels})
}
