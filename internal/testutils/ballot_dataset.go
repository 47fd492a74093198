// Package testutils provides utilities for testing, including ballot table
// generators and malformed fixtures. These components are intended for
// internal use within the project's test suites and tools and are not part
// of the public API.
package testutils

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ahrav/go-scrutin/internal/domain"
)

// BallotDataset is a generated ballot table together with the tallies it
// must produce.
type BallotDataset struct {
	// Header holds the choice names.
	Header []string `json:"header"`

	// Rows holds one row of cells per voter, aligned with Header. An empty
	// cell is an abstention.
	Rows [][]string `json:"rows"`

	// Expected holds the tally of every choice, counted while generating.
	Expected []domain.Tally `json:"expected"`

	// Metadata provides information about the dataset itself.
	Metadata DatasetMetadata `json:"metadata"`
}

// DatasetMetadata describes how a dataset was generated.
type DatasetMetadata struct {
	// Name identifies the dataset.
	Name string `json:"name"`

	// Scale is the name of the mention scale, "five" or "six".
	Scale string `json:"scale"`

	// Seed reproduces the dataset with GenerateBallotDataset.
	Seed int64 `json:"seed"`

	// Voters is the number of ballot rows.
	Voters int `json:"voters"`
}

// Table returns the header followed by the rows, the shape ballot sources
// yield.
func (d *BallotDataset) Table() [][]string {
	table := make([][]string, 0, len(d.Rows)+1)
	table = append(table, d.Header)
	return append(table, d.Rows...)
}

// WriteCSV writes the table to path, creating parent directories.
func (d *BallotDataset) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(d.Table()); err != nil {
		return fmt.Errorf("failed to write ballots: %w", err)
	}
	return nil
}

// WriteMetadata writes the metadata and expected tallies as JSON next to
// a CSV written by WriteCSV.
func (d *BallotDataset) WriteMetadata(path string) error {
	data, err := json.MarshalIndent(struct {
		Metadata DatasetMetadata `json:"metadata"`
		Header   []string        `json:"header"`
		Expected []domain.Tally  `json:"expected"`
	}{d.Metadata, d.Header, d.Expected}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// DatasetStatistics summarizes a dataset.
type DatasetStatistics struct {
	Voters      int
	Choices     int
	Abstentions int
	// MentionCounts counts cells per mention label across all choices.
	MentionCounts map[string]int
}

// ComputeDatasetStatistics counts the cells of d by mention.
func ComputeDatasetStatistics(d *BallotDataset) DatasetStatistics {
	stats := DatasetStatistics{
		Voters:        len(d.Rows),
		Choices:       len(d.Header),
		MentionCounts: make(map[string]int),
	}
	for _, row := range d.Rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) == "" {
				stats.Abstentions++
				continue
			}
			stats.MentionCounts[cell]++
		}
	}
	return stats
}
