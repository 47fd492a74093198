package display

import (
	"fmt"
	"strings"

	"github.com/ahrav/go-scrutin/internal/domain"
)

// Summary writes the plain-text synthesis of result under the victory rule
// t, in French. A winner sentence comes first when t selects any winner,
// followed by the full ranking when there is more than one choice.
func Summary(result *domain.ScrutinResult, t Threshold) string {
	ranked := result.Ranked()
	single := len(ranked) == 1
	winners := Winners(result, t)

	lines := make([]string, 0, len(ranked))
	for i, c := range ranked {
		entry := fmt.Sprintf("\"%s\"\nMention %s (%s)", c.Name, c.MajorityMention, c.DisplayScore())
		if !single {
			entry = fmt.Sprintf("#%d %s", i+1, entry)
		}
		lines = append(lines, entry)
	}
	ranking := strings.Join(lines, "\n\n")

	var b strings.Builder
	switch len(winners) {
	case 0:
		if single {
			b.WriteString("Le scrutin a abouti à la mention suivante :")
		} else {
			b.WriteString("Le scrutin a abouti au classement suivant :")
		}
		b.WriteString("\n\n")
		b.WriteString(ranking)
		return b.String()
	case 1:
		w := winners[0]
		fmt.Fprintf(&b, "Le scrutin a validé l'option \"%s\" avec la mention %s (%s).", w.Name, w.MajorityMention, w.DisplayScore())
	default:
		b.WriteString("Le scrutin a validé les options suivantes :\n")
		for i, w := range winners {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "#%d \"%s\" avec la mention %s (%s)", i+1, w.Name, w.MajorityMention, w.DisplayScore())
		}
	}

	if !single {
		b.WriteString("\n\nClassement complet :\n\n")
		b.WriteString(ranking)
	}
	return b.String()
}
