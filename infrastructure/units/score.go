package units

import (
	"github.com/ahrav/go-scrutin/internal/domain"
)

// DegeneratePolicy decides the score of a choice when the tie-break
// formula has a zero denominator, i.e. no vote sits on the majority
// mention, or when the choice received no vote at all.
type DegeneratePolicy string

// Supported degenerate-score policies.
const (
	// DegenerateClamp scores m + 0.5*sign(Pc-Oc): the limit of the
	// formula's reachable range on the winning side. Equal shares, or no
	// votes, score exactly m.
	DegenerateClamp DegeneratePolicy = "clamp"

	// DegenerateMajority scores exactly m.
	DegenerateMajority DegeneratePolicy = "majority"
)

// ScoreDetail is the breakdown of a tie-break score.
type ScoreDetail struct {
	// Majority is the scale position m of the majority mention.
	Majority int

	// Partisans counts votes strictly above m; Opponents strictly below.
	Partisans int
	Opponents int

	// Total is the number of votes, abstentions excluded.
	Total int

	// PartisanShare (Pc) and OpponentShare (Oc) are Partisans and
	// Opponents over Total, zero when Total is zero.
	PartisanShare float64
	OpponentShare float64

	// Score is m + 0.5*(Pc-Oc)/(1-Pc-Oc), or the policy value when
	// Degenerate is set. It is always finite.
	Score float64

	// Degenerate is set when the formula could not be applied.
	Degenerate bool
}

// Err returns domain.ErrDegenerateScore for a degenerate score and nil
// otherwise. It is meant for logging; a degenerate score is not a failure.
func (d ScoreDetail) Err() error {
	if d.Degenerate {
		return domain.ErrDegenerateScore
	}
	return nil
}

// Score computes the tie-break score of tally around the majority mention
// at position majority.
func Score(majority int, tally domain.Tally, policy DegeneratePolicy) ScoreDetail {
	d := ScoreDetail{Majority: majority, Total: tally.Total()}
	for i, n := range tally.Counts {
		switch {
		case i > majority:
			d.Partisans += n
		case i < majority:
			d.Opponents += n
		}
	}

	// Votes on m itself; 1-Pc-Oc is zero exactly when this is zero.
	onMajority := d.Total - d.Partisans - d.Opponents
	if d.Total > 0 {
		d.PartisanShare = float64(d.Partisans) / float64(d.Total)
		d.OpponentShare = float64(d.Opponents) / float64(d.Total)
	}

	if d.Total == 0 || onMajority == 0 {
		d.Degenerate = true
		d.Score = float64(majority)
		if policy != DegenerateMajority {
			switch {
			case d.Partisans > d.Opponents:
				d.Score += 0.5
			case d.Partisans < d.Opponents:
				d.Score -= 0.5
			}
		}
		return d
	}

	d.Score = float64(majority) +
		0.5*(d.PartisanShare-d.OpponentShare)/(1-d.PartisanShare-d.OpponentShare)
	return d
}
