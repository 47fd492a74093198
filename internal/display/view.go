package display

import (
	"net/url"

	"github.com/ahrav/go-scrutin/internal/domain"
)

// View is everything the result page renders for one decoded token.
type View struct {
	Result        *domain.ScrutinResult `json:"result"`
	Threshold     string                `json:"threshold"`
	Winners       []string              `json:"winners"`
	Participation *Participation        `json:"participation,omitempty"`
	Embedded      bool                  `json:"embedded"`
	Summary       string                `json:"summary"`
	ShareURL      string                `json:"share_url"`
	EmbedCode     string                `json:"embed_code"`
}

// NewView builds the page for result from the query parameters of the
// result page: the victory rule, the electorate "c" and the embed flag
// "d". An electorate that is missing or invalid hides the participation.
func NewView(result *domain.ScrutinResult, token, baseURL string, q url.Values) View {
	t := ParseThreshold(q)

	winners := Winners(result, t)
	names := make([]string, 0, len(winners))
	for _, w := range winners {
		names = append(names, w.Name)
	}

	v := View{
		Result:    result,
		Threshold: t.String(),
		Winners:   names,
		Embedded:  q.Get("d") == "embed",
		Summary:   Summary(result, t),
		ShareURL:  ShareURL(baseURL, token),
		EmbedCode: EmbedCode(EmbedURL(baseURL, token, t)),
	}
	if raw := q.Get("c"); raw != "" {
		if p, err := ParticipationOf(result, raw); err == nil {
			v.Participation = &p
		}
	}
	return v
}
