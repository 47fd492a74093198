package testutils

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/ahrav/go-scrutin/internal/domain"
)

// GeneratorConfig shapes a generated ballot table.
type GeneratorConfig struct {
	// Choices is the number of choices. Defaults to 3.
	Choices int
	// Voters is the number of ballots. Defaults to 100.
	Voters int
	// Scale is the mention scale. Defaults to the five mention scale.
	Scale *domain.MentionScale
	// AbstentionRate is the probability that a cell is left empty.
	AbstentionRate float64
	// Names overrides the generated choice names. Missing names are
	// generated.
	Names []string
}

// GenerateBallotDataset creates a ballot table with known tallies. Each
// choice leans toward its own mention so the ranking is not uniform. The
// seed controls randomization; use a fixed value for reproducible tests.
func GenerateBallotDataset(cfg GeneratorConfig, seed int64) *BallotDataset {
	if cfg.Choices <= 0 {
		cfg.Choices = 3
	}
	if cfg.Voters <= 0 {
		cfg.Voters = 100
	}
	if cfg.Scale == nil {
		cfg.Scale = domain.FiveMentionScale()
	}
	rng := rand.New(rand.NewSource(seed))
	size := cfg.Scale.Size()

	header := make([]string, cfg.Choices)
	leanings := make([]int, cfg.Choices)
	expected := make([]domain.Tally, cfg.Choices)
	for c := range cfg.Choices {
		if c < len(cfg.Names) && strings.TrimSpace(cfg.Names[c]) != "" {
			header[c] = cfg.Names[c]
		} else {
			header[c] = fmt.Sprintf("Choix %d", c+1)
		}
		leanings[c] = rng.Intn(size)
		expected[c] = domain.NewTally(size)
	}

	rows := make([][]string, 0, cfg.Voters)
	for range cfg.Voters {
		row := make([]string, cfg.Choices)
		for c := range cfg.Choices {
			if cfg.AbstentionRate > 0 && rng.Float64() < cfg.AbstentionRate {
				expected[c].Abstentions++
				continue
			}
			mention := drawMention(rng, leanings[c], size)
			row[c] = cfg.Scale.Label(mention)
			expected[c].Counts[mention]++
		}
		rows = append(rows, row)
	}

	return &BallotDataset{
		Header:   header,
		Rows:     rows,
		Expected: expected,
		Metadata: DatasetMetadata{
			Name:   fmt.Sprintf("generated-%d", seed),
			Scale:  cfg.Scale.Name(),
			Seed:   seed,
			Voters: cfg.Voters,
		},
	}
}

// drawMention picks the leaning mention half of the time and a neighbor or
// any mention otherwise.
func drawMention(rng *rand.Rand, leaning, size int) int {
	switch r := rng.Float64(); {
	case r < 0.5:
		return leaning
	case r < 0.8:
		m := leaning + rng.Intn(3) - 1
		if m < 0 {
			return 0
		}
		if m >= size {
			return size - 1
		}
		return m
	default:
		return rng.Intn(size)
	}
}
