package domain

// Ballot is one validated voter row. Marks holds a mention position per
// choice, aligned with the election's ordered choice list; Abstained marks
// an abstention cell.
type Ballot struct {
	// Row is the 1-based line of the ballot in the source table, the
	// header being line 1.
	Row int `json:"row"`

	// Marks are mention positions in the active MentionScale.
	Marks []int `json:"marks"`
}

// Tally is the histogram of mentions received by one choice.
type Tally struct {
	// Counts is indexed by scale position, weakest first.
	Counts []int `json:"counts"`

	// Abstentions counts abstention cells. They are reported for display
	// and excluded from Total.
	Abstentions int `json:"abstentions,omitempty"`
}

// NewTally returns an empty tally for a scale of the given size.
func NewTally(size int) Tally {
	return Tally{Counts: make([]int, size)}
}

// Total returns the number of votes cast on a mention, abstentions excluded.
func (t Tally) Total() int {
	total := 0
	for _, c := range t.Counts {
		total += c
	}
	return total
}

// Count returns the votes for the mention at position i.
func (t Tally) Count(i int) int {
	if i < 0 || i >= len(t.Counts) {
		return 0
	}
	return t.Counts[i]
}

// Equal reports whether two tallies hold the same counts.
func (t Tally) Equal(other Tally) bool {
	if len(t.Counts) != len(other.Counts) || t.Abstentions != other.Abstentions {
		return false
	}
	for i := range t.Counts {
		if t.Counts[i] != other.Counts[i] {
			return false
		}
	}
	return true
}

// ByLabel maps each mention label of scale to its count. The abstention
// bucket is included only when non-zero.
func (t Tally) ByLabel(scale *MentionScale) map[string]int {
	out := make(map[string]int, scale.Size()+1)
	for i := 0; i < scale.Size(); i++ {
		out[scale.Label(i)] = t.Count(i)
	}
	if t.Abstentions > 0 {
		out[AbstentionLabel] = t.Abstentions
	}
	return out
}
