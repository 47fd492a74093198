package testutils

import (
	"strings"

	"github.com/ahrav/go-scrutin/internal/domain"
)

// AdversarialTable is a ballot table that must be rejected as a whole.
type AdversarialTable struct {
	Name string
	Rows [][]string
	// Err is the format sentinel the rejection must carry.
	Err error
	// Row is the 1-based table line the rejection must name, 0 when the
	// failure is not tied to a line.
	Row int
}

// covered returns header followed by five ballots that each give every
// choice one mention of the five mention scale, so the distinct mention
// count is right and the rows appended after them decide the outcome.
func covered(header []string, rows ...[]string) [][]string {
	table := [][]string{header}
	for _, m := range []string{"Excellent", "Bien", "Passable", "Insuffisant", "À rejeter"} {
		row := make([]string, len(header))
		for i := range row {
			row[i] = m
		}
		table = append(table, row)
	}
	return append(table, rows...)
}

// AdversarialTables contains tables designed to test that malformed or
// hostile input never yields a partial result. Each is rejected when the
// five mention scale is declared.
var AdversarialTables = []AdversarialTable{
	{Name: "empty table", Rows: nil, Err: domain.ErrEmptyHeader},
	{Name: "empty header row", Rows: [][]string{{}}, Err: domain.ErrEmptyHeader},
	{Name: "blank choice name", Rows: [][]string{{"A", "  "}, {"Bien", "Bien"}}, Err: domain.ErrEmptyChoice, Row: 1},
	{Name: "header only", Rows: [][]string{{"A", "B"}}, Err: domain.ErrNoBallots},
	{
		Name: "short row after valid rows",
		Rows: [][]string{{"A", "B"}, {"Bien", "Bien"}, {"Bien", "Bien"}, {"Bien"}},
		Err:  domain.ErrRowLengthMismatch,
		Row:  4,
	},
	{
		Name: "extra cell",
		Rows: [][]string{{"A"}, {"Bien", "Bien"}},
		Err:  domain.ErrRowLengthMismatch,
		Row:  2,
	},
	{
		Name: "typo in last row",
		Rows: covered([]string{"A", "B"}, []string{"Bien", "Passable"}, []string{"Bien", "Pasable"}),
		Err:  domain.ErrInvalidMention,
		Row:  8,
	},
	{
		Name: "numeric grades",
		Rows: covered([]string{"A", "B"}, []string{"4", "3"}),
		Err:  domain.ErrInvalidMention,
		Row:  7,
	},
	{
		Name: "formula injection",
		Rows: covered([]string{"A"}, []string{"=HYPERLINK(\"http://x\")"}),
		Err:  domain.ErrInvalidMention,
		Row:  7,
	},
	{
		Name: "empty cell",
		Rows: covered([]string{"A", "B"}, []string{"Bien", ""}),
		Err:  domain.ErrInvalidMention,
		Row:  7,
	},
	{
		Name: "very long cell",
		Rows: covered([]string{"A"}, []string{strings.Repeat("Bien", 2500)}),
		Err:  domain.ErrInvalidMention,
		Row:  7,
	},
	{
		Name: "blank ballot",
		Rows: covered([]string{"A", "B"}, []string{"", ""}),
		Err:  domain.ErrInvalidMention,
		Row:  7,
	},
	{
		Name: "too few distinct mentions",
		Rows: [][]string{{"A", "B"}, {"Bien", "Passable"}, {"Passable", "Bien"}},
		Err:  domain.ErrScaleMismatch,
	},
	{
		Name: "scales mixed",
		Rows: [][]string{{"A"}, {"Excellent"}, {"Bien"}, {"Passable"}, {"Insuffisant"}, {"À rejeter"}, {"Très bien"}},
		Err:  domain.ErrScaleMismatch,
	},
}
