package units

import "github.com/ahrav/go-scrutin/internal/domain"

// MajorityMention returns the scale position of the majority mention of
// tally: the weakest mention m such that strictly more than half of the
// votes are at m or better and at least half are at m or worse.
// Abstentions take no part. With no votes the scale's middle mention is
// returned.
//
// Both conditions are checked on integers (2*sup > T, 2*inf >= T) so odd
// and even totals need no rounding.
func MajorityMention(scale *domain.MentionScale, tally domain.Tally) int {
	total := tally.Total()
	if total == 0 {
		return scale.Middle()
	}

	inf := 0
	sup := total
	for m := 0; m < scale.Size(); m++ {
		n := tally.Count(m)
		inf += n
		if 2*sup > total && 2*inf >= total {
			return m
		}
		sup -= n
	}
	return scale.Middle()
}
