// Command generate_ballot_dataset writes a synthetic ballot CSV with its
// expected tallies, for load tests and manual checks of the API.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-scrutin/internal/domain"
	"github.com/ahrav/go-scrutin/internal/testutils"
)

func main() {
	if err := newCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	var (
		choices    int
		voters     int
		scaleSize  int
		abstention float64
		seed       int64
		outputPath string
	)

	cmd := &cobra.Command{
		Use:          "generate_ballot_dataset",
		Short:        "Generate a synthetic majority-judgment ballot file",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scale, ok := domain.ScaleOfSize(scaleSize)
			if !ok {
				return fmt.Errorf("--scale must be 5 or 6, got %d", scaleSize)
			}
			if !cmd.Flags().Changed("seed") {
				seed = time.Now().UnixNano()
			}

			ds := testutils.GenerateBallotDataset(testutils.GeneratorConfig{
				Choices:        choices,
				Voters:         voters,
				Scale:          scale,
				AbstentionRate: abstention,
			}, seed)

			if err := ds.WriteCSV(outputPath); err != nil {
				return err
			}
			metaPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".json"
			if err := ds.WriteMetadata(metaPath); err != nil {
				return err
			}

			stats := testutils.ComputeDatasetStatistics(ds)
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Generated ballot dataset:\n")
			fmt.Fprintf(w, "- Path: %s\n", outputPath)
			fmt.Fprintf(w, "- Expected tallies: %s\n", metaPath)
			fmt.Fprintf(w, "- Scale: %s\n", ds.Metadata.Scale)
			fmt.Fprintf(w, "- Seed: %d\n", seed)
			fmt.Fprintf(w, "- Voters: %d, choices: %d, abstentions: %d\n", stats.Voters, stats.Choices, stats.Abstentions)
			if abstention > 0 {
				fmt.Fprintf(w, "\nTabulate with empty_cell: abstain, the default policy rejects empty cells.\n")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&choices, "choices", 3, "Number of choices")
	cmd.Flags().IntVar(&voters, "voters", 500, "Number of ballots")
	cmd.Flags().IntVar(&scaleSize, "scale", 5, "Mention scale size: 5 or 6")
	cmd.Flags().Float64Var(&abstention, "abstention", 0, "Probability that a cell is left empty")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (defaults to the current time)")
	cmd.Flags().StringVar(&outputPath, "output", "testdata/ballots/sample_ballots.csv", "Output CSV path")
	return cmd
}
