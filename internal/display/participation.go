package display

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ahrav/go-scrutin/internal/domain"
)

// ErrInvalidElectorate is returned when the electorate is not a positive
// whole number.
var ErrInvalidElectorate = errors.New("electorate must be a positive integer")

// Participation relates the number of voters to the size of the electorate.
type Participation struct {
	Voters     int     `json:"voters"`
	Electorate int     `json:"electorate"`
	Rate       float64 `json:"rate"`
}

var printer = message.NewPrinter(language.French)

// NewParticipation computes the participation rate as a percentage.
func NewParticipation(voters, electorate int) (Participation, error) {
	if electorate <= 0 {
		return Participation{}, fmt.Errorf("%w: %d", ErrInvalidElectorate, electorate)
	}
	if voters < 0 {
		return Participation{}, fmt.Errorf("voters must not be negative: %d", voters)
	}
	return Participation{
		Voters:     voters,
		Electorate: electorate,
		Rate:       float64(voters) / float64(electorate) * 100,
	}, nil
}

// ParticipationOf reads the electorate from raw and counts the voters of
// result. Abstentions are not voters: the count is the number of mentions
// cast for the first choice.
func ParticipationOf(result *domain.ScrutinResult, raw string) (Participation, error) {
	electorate, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return Participation{}, fmt.Errorf("%w: %q", ErrInvalidElectorate, raw)
	}
	voters := 0
	if len(result.Choices) > 0 {
		voters = result.Choices[0].Tally.Total()
	}
	return NewParticipation(voters, electorate)
}

// RateText renders the rate with one decimal in French notation, as in
// "62,5".
func (p Participation) RateText() string {
	return printer.Sprintf("%.1f", p.Rate)
}

// Text renders the participation line shown under a result.
func (p Participation) Text() string {
	return printer.Sprintf("Participation : %d votants sur %d inscrits (%s %%)", p.Voters, p.Electorate, p.RateText())
}
