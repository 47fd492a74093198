package units

import (
	"context"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/ahrav/go-scrutin/internal/domain"
	"github.com/ahrav/go-scrutin/internal/ports"
)

var _ ports.Unit = (*BallotValidatorUnit)(nil)

// EmptyCellPolicy decides what an empty ballot cell means.
type EmptyCellPolicy string

// Supported empty-cell policies.
const (
	// EmptyCellReject treats an empty cell as an invalid mention.
	EmptyCellReject EmptyCellPolicy = "reject"

	// EmptyCellAbstain counts an empty cell as an abstention.
	EmptyCellAbstain EmptyCellPolicy = "abstain"

	// EmptyCellMiddle counts an empty cell as the scale's middle mention.
	EmptyCellMiddle EmptyCellPolicy = "middle"
)

// BallotValidatorConfig defines the configuration parameters for the
// BallotValidatorUnit.
type BallotValidatorConfig struct {
	// DeclaredScale is the scale size announced by the caller: 5, 6, or 0
	// to infer it from the ballots. A non-zero KeyDeclaredScale in the
	// state takes precedence.
	DeclaredScale int `yaml:"declared_scale" json:"declared_scale" validate:"omitempty,oneof=5 6"`

	// EmptyCell selects how empty and "Abstention" cells are handled.
	EmptyCell EmptyCellPolicy `yaml:"empty_cell" json:"empty_cell" validate:"required,oneof=reject abstain middle"`

	// SuggestionDistance is the largest edit distance at which an invalid
	// mention gets a "did you mean" suggestion. Zero disables suggestions.
	SuggestionDistance int `yaml:"suggestion_distance" json:"suggestion_distance" validate:"min=0,max=5"`

	// LenientScale lets a declared scale accept ballots that use only some
	// of its mentions. Off, the distinct mentions must number 5 or 6 and
	// match the declaration.
	LenientScale bool `yaml:"lenient_scale" json:"lenient_scale"`
}

// DefaultBallotValidatorConfig returns a BallotValidatorConfig with sensible defaults.
func DefaultBallotValidatorConfig() BallotValidatorConfig {
	return BallotValidatorConfig{
		EmptyCell:          EmptyCellReject,
		SuggestionDistance: 2,
	}
}

// BallotValidatorUnit checks the raw ballot table, infers the mention
// scale in play, and converts every cell into a scale position.
// It reads KeyRows (and optionally KeyDeclaredScale) and writes KeyScale,
// KeyChoices and KeyBallots. Any problem rejects the whole table.
type BallotValidatorUnit struct {
	name   string
	config BallotValidatorConfig
	scales []*domain.MentionScale
}

// NewBallotValidatorUnit creates a validator over the given scales. With
// no scales the built-in five and six mention scales are used.
func NewBallotValidatorUnit(
	name string,
	config BallotValidatorConfig,
	scales ...*domain.MentionScale,
) (*BallotValidatorUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if len(scales) == 0 {
		scales = domain.BuiltinScales()
	}
	return &BallotValidatorUnit{name: name, config: config, scales: scales}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *BallotValidatorUnit) Name() string { return u.name }

// Validate checks if the unit is properly configured and ready for execution.
func (u *BallotValidatorUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if len(u.scales) == 0 {
		return fmt.Errorf("no mention scale configured")
	}
	return nil
}

// Execute validates the rows stored in state.
func (u *BallotValidatorUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	rows, ok := domain.Get(state, domain.KeyRows)
	if !ok {
		return state, domain.MissingKey(domain.KeyRows)
	}

	declared := u.config.DeclaredScale
	if d, ok := domain.Get(state, domain.KeyDeclaredScale); ok && d != 0 {
		declared = d
	}

	scale, choices, ballots, err := u.Check(rows, declared)
	if err != nil {
		return state, err
	}

	return state.WithMultiple(map[string]any{
		domain.KeyScale.Name():   scale,
		domain.KeyChoices.Name(): choices,
		domain.KeyBallots.Name(): ballots,
	}), nil
}

// Check validates rows, where rows[0] holds the choice names and every
// following row one mention per choice. declared is 0, 5 or 6.
// It returns the inferred scale, the trimmed choice names and one ballot
// per row, or a *domain.FormatError.
func (u *BallotValidatorUnit) Check(
	rows [][]string,
	declared int,
) (*domain.MentionScale, []string, []domain.Ballot, error) {
	choices, err := parseHeader(rows)
	if err != nil {
		return nil, nil, nil, err
	}

	if len(rows) < 2 {
		return nil, nil, nil, domain.NewFormatError(domain.ErrNoBallots)
	}

	for i, row := range rows[1:] {
		if len(row) != len(choices) {
			ferr := domain.NewFormatError(domain.ErrRowLengthMismatch)
			ferr.Row = i + 2
			ferr.Expected = len(choices)
			ferr.Actual = len(row)
			return nil, nil, nil, ferr
		}
	}

	scale, err := u.resolveScale(rows[1:], declared)
	if err != nil {
		return nil, nil, nil, err
	}

	ballots := make([]domain.Ballot, 0, len(rows)-1)
	for i, row := range rows[1:] {
		ballot := domain.Ballot{Row: i + 2, Marks: make([]int, len(row))}
		for col, cell := range row {
			mark, err := u.mark(scale, cell)
			if err != nil {
				ferr := u.invalidMention(scale, cell)
				ferr.Row = ballot.Row
				ferr.Column = col
				ferr.Choice = choices[col]
				return nil, nil, nil, ferr
			}
			ballot.Marks[col] = mark
		}
		ballots = append(ballots, ballot)
	}

	return scale, choices, ballots, nil
}

func parseHeader(rows [][]string) ([]string, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, domain.NewFormatError(domain.ErrEmptyHeader)
	}
	choices := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		choices[i] = strings.TrimSpace(name)
		if choices[i] == "" {
			ferr := domain.NewFormatError(domain.ErrEmptyChoice)
			ferr.Row = 1
			ferr.Column = i
			return nil, ferr
		}
	}
	return choices, nil
}

// isBlank reports whether a cell falls under the empty-cell policy.
func isBlank(cell string) bool {
	v := domain.NormalizeLabel(cell)
	return v == "" || v == domain.AbstentionLabel
}

// mark converts a cell into a scale position or domain.Abstained.
func (u *BallotValidatorUnit) mark(scale *domain.MentionScale, cell string) (int, error) {
	if isBlank(cell) {
		switch u.config.EmptyCell {
		case EmptyCellAbstain:
			return domain.Abstained, nil
		case EmptyCellMiddle:
			return scale.Middle(), nil
		default:
			return 0, domain.ErrInvalidMention
		}
	}
	if idx, ok := scale.Index(cell); ok {
		return idx, nil
	}
	return 0, domain.ErrInvalidMention
}

func (u *BallotValidatorUnit) invalidMention(scale *domain.MentionScale, cell string) *domain.FormatError {
	ferr := domain.NewFormatError(domain.ErrInvalidMention)
	ferr.Value = domain.NormalizeLabel(cell)
	ferr.ValidMentions = scale.Labels()
	ferr.Suggestion = u.suggest(scale, ferr.Value)
	return ferr
}

// suggest returns the scale label closest to value, compared without
// case, when it lies within the configured edit distance.
func (u *BallotValidatorUnit) suggest(scale *domain.MentionScale, value string) string {
	if u.config.SuggestionDistance == 0 || value == "" {
		return ""
	}
	best, bestDist := "", u.config.SuggestionDistance+1
	lower := strings.ToLower(value)
	for _, label := range scale.Labels() {
		d := levenshtein.ComputeDistance(lower, strings.ToLower(label))
		if d < bestDist {
			best, bestDist = label, d
		}
	}
	return best
}

// resolveScale infers the scale from the distinct known mentions used in
// ballots and reconciles it with the declared size. The inferred scale
// must exist unless a declared scale is read leniently.
func (u *BallotValidatorUnit) resolveScale(ballots [][]string, declared int) (*domain.MentionScale, error) {
	observed := u.observedMentions(ballots)
	inferred := u.inferScale(observed)

	if declared == 0 {
		if inferred == nil {
			return nil, scaleMismatch(nearestSize(len(observed)), len(observed))
		}
		return inferred, nil
	}

	want := u.scaleOfSize(declared)
	if want == nil {
		return nil, scaleMismatch(declared, len(observed))
	}
	if inferred != nil && inferred.Size() != declared {
		return nil, scaleMismatch(declared, inferred.Size())
	}
	if inferred == nil && (!u.config.LenientScale || len(observed) > declared) {
		return nil, scaleMismatch(declared, len(observed))
	}
	return want, nil
}

// observedMentions lists, in order of first appearance, the distinct
// normalized cells that belong to at least one configured scale.
func (u *BallotValidatorUnit) observedMentions(ballots [][]string) []string {
	seen := make(map[string]bool)
	var observed []string
	for _, row := range ballots {
		for _, cell := range row {
			if isBlank(cell) {
				continue
			}
			v := domain.NormalizeLabel(cell)
			if seen[v] {
				continue
			}
			seen[v] = true
			for _, s := range u.scales {
				if s.Contains(v) {
					observed = append(observed, v)
					break
				}
			}
		}
	}
	return observed
}

// inferScale picks the scale matching the observed mentions. The count
// must be a supported scale size. A scale of that size containing every
// observed mention wins; otherwise any scale containing them all; failing
// that, the first scale of that size, whose foreign mentions then surface
// as invalid cells.
func (u *BallotValidatorUnit) inferScale(observed []string) *domain.MentionScale {
	n := len(observed)
	if n != domain.FiveMentions && n != domain.SixMentions {
		return nil
	}
	for _, s := range u.scales {
		if s.Size() == n && containsAll(s, observed) {
			return s
		}
	}
	for _, s := range u.scales {
		if containsAll(s, observed) {
			return s
		}
	}
	return u.scaleOfSize(n)
}

func (u *BallotValidatorUnit) scaleOfSize(n int) *domain.MentionScale {
	for _, s := range u.scales {
		if s.Size() == n {
			return s
		}
	}
	return nil
}

func containsAll(s *domain.MentionScale, labels []string) bool {
	for _, l := range labels {
		if !s.Contains(l) {
			return false
		}
	}
	return true
}

func nearestSize(n int) int {
	if n < domain.FiveMentions {
		return domain.FiveMentions
	}
	return domain.SixMentions
}

func scaleMismatch(expected, actual int) *domain.FormatError {
	ferr := domain.NewFormatError(domain.ErrScaleMismatch)
	ferr.Expected = expected
	ferr.Actual = actual
	return ferr
}

// NewBallotValidatorFromConfig creates a BallotValidatorUnit from a
// configuration map. This is the boundary adapter for YAML/JSON configuration.
func NewBallotValidatorFromConfig(id string, config map[string]any) (ports.Unit, error) {
	cfg := DefaultBallotValidatorConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewBallotValidatorUnit(id, cfg)
}
