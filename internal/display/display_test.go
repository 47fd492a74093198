package display

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-scrutin/internal/domain"
)

func choice(name string, mention int, score float64, counts ...int) domain.ChoiceResult {
	scale := domain.FiveMentionScale()
	return domain.ChoiceResult{
		Name:            name,
		MajorityMention: scale.Label(mention),
		MajorityIndex:   mention,
		Score:           score,
		Tally:           domain.Tally{Counts: counts},
	}
}

// threeChoices ranks B and C tied at 3.00 ahead of A at 2.17.
func threeChoices() *domain.ScrutinResult {
	return domain.NewScrutinResult(domain.FiveMentionScale(), []domain.ChoiceResult{
		choice("A", 2, 2.1666666666666665, 1, 2, 3, 2, 2),
		choice("B", 3, 3, 0, 0, 0, 10, 0),
		choice("C", 3, 3, 0, 0, 0, 10, 0),
	}, domain.Metadata{Method: domain.DefaultMethod, Voters: 10})
}

func twoChoices() *domain.ScrutinResult {
	return domain.NewScrutinResult(domain.FiveMentionScale(), []domain.ChoiceResult{
		choice("A", 2, 2.1666666666666665, 1, 2, 3, 2, 2),
		choice("B", 3, 3, 0, 0, 0, 10, 0),
	}, domain.Metadata{Method: domain.DefaultMethod, Voters: 10})
}

func oneChoice() *domain.ScrutinResult {
	return domain.NewScrutinResult(domain.FiveMentionScale(), []domain.ChoiceResult{
		choice("Seul", 3, 3, 0, 0, 0, 4, 0),
	}, domain.Metadata{Method: domain.DefaultMethod, Voters: 4})
}

func names(choices []domain.ChoiceResult) []string {
	out := make([]string, 0, len(choices))
	for _, c := range choices {
		out = append(out, c.Name)
	}
	return out
}

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		query string
		want  Threshold
		str   string
	}{
		{query: "", want: DefaultThreshold, str: "top_1"},
		{query: "v=0", want: Threshold{Kind: ThresholdNone}, str: "none"},
		{query: "v=0&n=3", want: Threshold{Kind: ThresholdNone}, str: "none"},
		{query: "v=1", want: DefaultThreshold, str: "top_1"},
		{query: "n=3", want: Threshold{Kind: ThresholdTop, N: 3}, str: "top_3"},
		{query: "n=3&s=1", want: Threshold{Kind: ThresholdTop, N: 3}, str: "top_3"},
		{query: "n=zero", want: DefaultThreshold, str: "top_1"},
		{query: "n=-2", want: DefaultThreshold, str: "top_1"},
		{query: "s=1", want: Threshold{Kind: ThresholdMention, Level: LevelStrongest}, str: "excellent"},
		{query: "s=2", want: Threshold{Kind: ThresholdMention, Level: LevelBien}, str: "bien"},
		{query: "s=3", want: Threshold{Kind: ThresholdMention, Level: LevelPassable}, str: "passable"},
		{query: "s=9", want: DefaultThreshold, str: "top_1"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			got := ParseThreshold(q)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.str, got.String())
			assert.Equal(t, got, ParseThreshold(got.Params()), "params round trip")
		})
	}
}

func TestThreshold_MinMention(t *testing.T) {
	five := domain.FiveMentionScale()
	six := domain.SixMentionScale()

	assert.Equal(t, 4, Threshold{Kind: ThresholdMention, Level: LevelStrongest}.MinMention(five))
	assert.Equal(t, 3, Threshold{Kind: ThresholdMention, Level: LevelBien}.MinMention(five))
	assert.Equal(t, 2, Threshold{Kind: ThresholdMention, Level: LevelPassable}.MinMention(five))

	assert.Equal(t, "Très bien", six.Label(Threshold{Kind: ThresholdMention, Level: LevelStrongest}.MinMention(six)))
	assert.Equal(t, "Bien", six.Label(Threshold{Kind: ThresholdMention, Level: LevelBien}.MinMention(six)))
	assert.Equal(t, "Passable", six.Label(Threshold{Kind: ThresholdMention, Level: LevelPassable}.MinMention(six)))
}

func TestWinners(t *testing.T) {
	result := threeChoices()

	tests := []struct {
		name string
		t    Threshold
		want []string
	}{
		{name: "default keeps ties", t: DefaultThreshold, want: []string{"B", "C"}},
		{name: "no winner", t: Threshold{Kind: ThresholdNone}, want: []string{}},
		{name: "top two", t: Threshold{Kind: ThresholdTop, N: 2}, want: []string{"B", "C"}},
		{name: "top beyond size", t: Threshold{Kind: ThresholdTop, N: 5}, want: []string{"B", "C", "A"}},
		{name: "strongest mention", t: Threshold{Kind: ThresholdMention, Level: LevelStrongest}, want: []string{}},
		{name: "at least bien", t: Threshold{Kind: ThresholdMention, Level: LevelBien}, want: []string{"B", "C"}},
		{name: "at least passable", t: Threshold{Kind: ThresholdMention, Level: LevelPassable}, want: []string{"B", "C", "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(Winners(result, tt.t)))
		})
	}

	empty := domain.NewScrutinResult(domain.FiveMentionScale(), nil, domain.Metadata{})
	assert.Empty(t, Winners(empty, DefaultThreshold))
}

func TestSummary_SingleWinner(t *testing.T) {
	want := "Le scrutin a validé l'option \"B\" avec la mention Bien (3.00).\n\n" +
		"Classement complet :\n\n" +
		"#1 \"B\"\nMention Bien (3.00)\n\n" +
		"#2 \"A\"\nMention Passable (2.17)"
	assert.Equal(t, want, Summary(twoChoices(), DefaultThreshold))
}

func TestSummary_NoWinner(t *testing.T) {
	want := "Le scrutin a abouti au classement suivant :\n\n" +
		"#1 \"B\"\nMention Bien (3.00)\n\n" +
		"#2 \"A\"\nMention Passable (2.17)"
	assert.Equal(t, want, Summary(twoChoices(), Threshold{Kind: ThresholdNone}))
}

func TestSummary_SeveralWinners(t *testing.T) {
	got := Summary(threeChoices(), DefaultThreshold)

	assert.True(t, strings.HasPrefix(got, "Le scrutin a validé les options suivantes :\n"+
		"#1 \"B\" avec la mention Bien (3.00)\n"+
		"#2 \"C\" avec la mention Bien (3.00)\n\n"+
		"Classement complet :\n\n"), got)
	assert.True(t, strings.HasSuffix(got, "#3 \"A\"\nMention Passable (2.17)"), got)
}

func TestSummary_SingleChoice(t *testing.T) {
	assert.Equal(t,
		"Le scrutin a validé l'option \"Seul\" avec la mention Bien (3.00).",
		Summary(oneChoice(), DefaultThreshold))
	assert.Equal(t,
		"Le scrutin a abouti à la mention suivante :\n\n\"Seul\"\nMention Bien (3.00)",
		Summary(oneChoice(), Threshold{Kind: ThresholdNone}))
}

func TestParticipation(t *testing.T) {
	p, err := NewParticipation(5, 8)
	require.NoError(t, err)
	assert.Equal(t, 62.5, p.Rate)
	assert.Equal(t, "62,5", p.RateText())

	p, err = ParticipationOf(twoChoices(), " 20 ")
	require.NoError(t, err)
	assert.Equal(t, 10, p.Voters)
	assert.Equal(t, "50,0", p.RateText())
	assert.Equal(t, "Participation : 10 votants sur 20 inscrits (50,0 %)", p.Text())

	_, err = NewParticipation(5, 0)
	assert.ErrorIs(t, err, ErrInvalidElectorate)
	_, err = NewParticipation(-1, 3)
	assert.Error(t, err)
	_, err = ParticipationOf(twoChoices(), "beaucoup")
	assert.ErrorIs(t, err, ErrInvalidElectorate)
}

func TestShareURL(t *testing.T) {
	assert.Equal(t,
		"https://scrutin.example/result?data=A~P~E2_Le%2Bchat~B~E0%25C3~3.00",
		ShareURL("https://scrutin.example/", "A~P~E2_Le+chat~B~E0%C3~3.00"))
}

func TestEmbed(t *testing.T) {
	token := "A~P~E1~1.00"

	assert.Equal(t, "https://scrutin.example/result?data=A~P~E1~1.00&d=embed",
		EmbedURL("https://scrutin.example", token, DefaultThreshold))
	assert.Equal(t, "https://scrutin.example/result?data=A~P~E1~1.00&s=2&d=embed",
		EmbedURL("https://scrutin.example", token, Threshold{Kind: ThresholdMention, Level: LevelBien}))

	code := EmbedCode(EmbedURL("https://scrutin.example", token, Threshold{Kind: ThresholdNone}))
	assert.True(t, strings.HasPrefix(code, `<iframe title="Résultat du scrutin" id="iframeResize"`), code)
	assert.Contains(t, code, `src="https://scrutin.example/result?data=A~P~E1~1.00&v=0&d=embed"></iframe>`)
	assert.Contains(t, code, "iframeHeight")

	assert.Contains(t, EmbedCode(`https://scrutin.example/result?data=a%7Eb"c`), `data=a~b&quot;c`)
}

func TestNewView(t *testing.T) {
	q, err := url.ParseQuery("n=2&c=20&d=embed")
	require.NoError(t, err)

	v := NewView(threeChoices(), "T", "https://scrutin.example", q)
	assert.Equal(t, "top_2", v.Threshold)
	assert.Equal(t, []string{"B", "C"}, v.Winners)
	assert.True(t, v.Embedded)
	require.NotNil(t, v.Participation)
	assert.Equal(t, 50.0, v.Participation.Rate)
	assert.Equal(t, "https://scrutin.example/result?data=T", v.ShareURL)
	assert.Contains(t, v.EmbedCode, "data=T&n=2&d=embed")
	assert.Contains(t, v.Summary, "les options suivantes")

	v = NewView(threeChoices(), "T", "https://scrutin.example", url.Values{"c": {"0"}})
	assert.Nil(t, v.Participation)
	assert.False(t, v.Embedded)
}
