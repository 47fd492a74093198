// Package display turns a decoded result into what a reader sees: which
// choices won under a victory rule, the participation rate, the embed
// snippet and a plain-text synthesis. Nothing here changes the ranking.
package display

import (
	"net/url"
	"strconv"

	"github.com/ahrav/go-scrutin/internal/domain"
)

// ThresholdKind selects how winners are picked from the ranking.
type ThresholdKind int

const (
	// ThresholdTop keeps the N best ranked choices. With N == 1 every
	// choice tied at the best score wins.
	ThresholdTop ThresholdKind = iota
	// ThresholdNone declares no winner.
	ThresholdNone
	// ThresholdMention keeps every choice whose majority mention is at
	// least the minimum mention.
	ThresholdMention
)

// Minimum mention levels carried by the "s" parameter.
const (
	LevelStrongest = 1
	LevelBien      = 2
	LevelPassable  = 3
)

// Threshold is a victory rule.
type Threshold struct {
	Kind ThresholdKind
	// N is the number of winners for ThresholdTop.
	N int
	// Level is LevelStrongest, LevelBien or LevelPassable for
	// ThresholdMention.
	Level int
}

// DefaultThreshold is the single best choice, ties included.
var DefaultThreshold = Threshold{Kind: ThresholdTop, N: 1}

// ParseThreshold reads the victory rule from query parameters: v=0 for no
// winner, n=<N> for the N best, s=1|2|3 for a minimum mention. v wins over
// n, and n over s. Malformed values fall back to DefaultThreshold.
func ParseThreshold(q url.Values) Threshold {
	if q.Get("v") == "0" {
		return Threshold{Kind: ThresholdNone}
	}
	if raw := q.Get("n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return DefaultThreshold
		}
		return Threshold{Kind: ThresholdTop, N: n}
	}
	switch q.Get("s") {
	case "1":
		return Threshold{Kind: ThresholdMention, Level: LevelStrongest}
	case "2":
		return Threshold{Kind: ThresholdMention, Level: LevelBien}
	case "3":
		return Threshold{Kind: ThresholdMention, Level: LevelPassable}
	}
	return DefaultThreshold
}

// Params renders the rule back into query parameters. The default rule
// has none.
func (t Threshold) Params() url.Values {
	q := url.Values{}
	switch t.Kind {
	case ThresholdNone:
		q.Set("v", "0")
	case ThresholdTop:
		if t.N > 1 {
			q.Set("n", strconv.Itoa(t.N))
		}
	case ThresholdMention:
		q.Set("s", strconv.Itoa(t.Level))
	}
	return q
}

// String names the rule: "none", "top_<N>", or the lower-cased minimum
// mention of the five mention scale.
func (t Threshold) String() string {
	switch t.Kind {
	case ThresholdNone:
		return "none"
	case ThresholdMention:
		switch t.Level {
		case LevelStrongest:
			return "excellent"
		case LevelBien:
			return "bien"
		default:
			return "passable"
		}
	default:
		return "top_" + strconv.Itoa(t.N)
	}
}

// MinMention returns the scale position a choice must reach under a
// ThresholdMention rule. Level 1 is the strongest mention, level 2 "Bien"
// and level 3 "Passable".
func (t Threshold) MinMention(scale *domain.MentionScale) int {
	switch t.Level {
	case LevelStrongest:
		return scale.Strongest()
	case LevelBien:
		if i, ok := scale.Index("Bien"); ok {
			return i
		}
		return scale.Strongest() - 1
	default:
		if i, ok := scale.Index("Passable"); ok {
			return i
		}
		return scale.Middle()
	}
}

// Winners returns the winning choices in ranking order.
func Winners(result *domain.ScrutinResult, t Threshold) []domain.ChoiceResult {
	ranked := result.Ranked()
	if len(ranked) == 0 {
		return nil
	}

	switch t.Kind {
	case ThresholdNone:
		return nil
	case ThresholdMention:
		floor := t.MinMention(result.Scale)
		var out []domain.ChoiceResult
		for _, c := range ranked {
			if c.MajorityIndex >= floor {
				out = append(out, c)
			}
		}
		return out
	default:
		if t.N <= 1 {
			best := domain.RoundScore(ranked[0].Score)
			var out []domain.ChoiceResult
			for _, c := range ranked {
				if domain.RoundScore(c.Score) == best {
					out = append(out, c)
				}
			}
			return out
		}
		if t.N > len(ranked) {
			return ranked
		}
		return ranked[:t.N]
	}
}
