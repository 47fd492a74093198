package domain

import (
	"math"
	"sort"
	"strconv"
)

// DefaultMethod is the method label reported in result metadata.
const DefaultMethod = "Jugement usuel"

// ChoiceResult is the majority-judgment outcome of a single choice.
type ChoiceResult struct {
	// Name is the choice label as given in the ballot header.
	Name string `json:"name"`

	// MajorityMention is the label of the choice's majority mention.
	MajorityMention string `json:"majority_mention"`

	// MajorityIndex is the scale position of MajorityMention.
	MajorityIndex int `json:"majority_index"`

	// Score is the tie-break score at full precision. Use DisplayScore
	// for presentation.
	Score float64 `json:"score"`

	// Tally is the mention histogram the score was derived from.
	Tally Tally `json:"tally"`

	// Rank is the 1-based position of the choice in the ranking.
	Rank int `json:"rank"`

	// Degenerate is set when the score formula had a zero denominator and
	// the configured fallback policy was applied.
	Degenerate bool `json:"degenerate,omitempty"`
}

// DisplayScore returns the score rounded to two decimals.
func (c ChoiceResult) DisplayScore() string { return FormatScore(c.Score) }

// Metadata describes how a result was produced.
type Metadata struct {
	// Method names the counting method.
	Method string `json:"method"`

	// Voters is the number of ballots behind the result.
	Voters int `json:"voters"`
}

// ScrutinResult is the complete, immutable outcome of one election.
type ScrutinResult struct {
	// Scale is the mention scale the ballots were rated on.
	Scale *MentionScale `json:"scale"`

	// Choices holds one result per choice in input order. Duplicate names
	// are independent entries.
	Choices []ChoiceResult `json:"choices"`

	// Ranking lists indexes into Choices, best first.
	Ranking []int `json:"ranking"`

	// Winner is the name of the top-ranked choice.
	Winner string `json:"winner"`

	// WinningMention is the majority mention of the winner.
	WinningMention string `json:"winning_mention"`

	Metadata Metadata `json:"metadata"`
}

// NewScrutinResult ranks choices by score, highest first, keeping input
// order among equal scores, and fills in Rank, Ranking and the winner.
// choices is copied; the caller's slice is left untouched.
func NewScrutinResult(scale *MentionScale, choices []ChoiceResult, meta Metadata) *ScrutinResult {
	ranked := make([]ChoiceResult, len(choices))
	copy(ranked, choices)

	order := make([]int, len(ranked))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return ranked[order[a]].Score > ranked[order[b]].Score
	})
	for pos, idx := range order {
		ranked[idx].Rank = pos + 1
	}

	result := &ScrutinResult{
		Scale:    scale,
		Choices:  ranked,
		Ranking:  order,
		Metadata: meta,
	}
	if len(order) > 0 {
		top := ranked[order[0]]
		result.Winner = top.Name
		result.WinningMention = top.MajorityMention
	}
	return result
}

// Ranked returns the choice results ordered best first.
func (r *ScrutinResult) Ranked() []ChoiceResult {
	out := make([]ChoiceResult, 0, len(r.Ranking))
	for _, idx := range r.Ranking {
		out = append(out, r.Choices[idx])
	}
	return out
}

// Choice returns the first choice result named name.
func (r *ScrutinResult) Choice(name string) (ChoiceResult, bool) {
	for _, c := range r.Choices {
		if c.Name == name {
			return c, true
		}
	}
	return ChoiceResult{}, false
}

// FormatScore renders a score with two decimals.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 2, 64)
}

// RoundScore rounds a score to two decimals, the precision carried by
// encoded tokens.
func RoundScore(score float64) float64 {
	return math.Round(score*100) / 100
}
