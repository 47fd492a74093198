package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-scrutin/internal/display"
)

// minMentionLevel maps a --min-mention value to the "s" query level.
func minMentionLevel(raw string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "excellent", "très bien", "tres bien":
		return display.LevelStrongest, nil
	case "2", "bien":
		return display.LevelBien, nil
	case "3", "passable":
		return display.LevelPassable, nil
	default:
		return 0, fmt.Errorf("unknown minimum mention %q: use excellent, bien or passable", raw)
	}
}

func decodeCmd(e *env) *cobra.Command {
	var (
		top        int
		minMention string
		noWinner   bool
		electorate int
		asJSON     bool
		baseURL    string
	)

	c := &cobra.Command{
		Use:   "decode TOKEN",
		Short: "Decode a result token and show its winners",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			switch {
			case noWinner:
				q.Set("v", "0")
			case top > 0:
				q.Set("n", strconv.Itoa(top))
			case minMention != "":
				level, err := minMentionLevel(minMention)
				if err != nil {
					return err
				}
				q.Set("s", strconv.Itoa(level))
			}
			if cmd.Flags().Changed("electorate") {
				if electorate <= 0 {
					return fmt.Errorf("%w: %d", display.ErrInvalidElectorate, electorate)
				}
				q.Set("c", strconv.Itoa(electorate))
			}
			if baseURL == "" {
				baseURL = e.cfg.Server.BaseURL
			}

			svc, _, err := newService(cmd.Context(), e, prometheus.NewRegistry())
			if err != nil {
				return err
			}

			token := args[0]
			result, err := svc.Open(token)
			if err != nil {
				return err
			}
			view := display.NewView(result, token, baseURL, q)

			if asJSON {
				enc := json.NewEncoder(out(cmd))
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}

			w := out(cmd)
			if err := printRanking(w, result); err != nil {
				return err
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, view.Summary)
			if view.Participation != nil {
				fmt.Fprintln(w)
				fmt.Fprintln(w, view.Participation.Text())
			}
			return nil
		},
	}

	c.Flags().IntVar(&top, "top", 0, "Declare the N best choices winners")
	c.Flags().StringVar(&minMention, "min-mention", "", "Declare winners every choice reaching this mention: excellent, bien or passable")
	c.Flags().BoolVar(&noWinner, "no-winner", false, "Show the ranking without declaring a winner")
	c.Flags().IntVar(&electorate, "electorate", 0, "Size of the electorate, to report participation")
	c.Flags().BoolVar(&asJSON, "json", false, "Print the result view as JSON")
	c.Flags().StringVar(&baseURL, "base-url", "", "Prefix of share links (defaults to the configured base URL)")
	c.MarkFlagsMutuallyExclusive("top", "min-mention", "no-winner")
	return c
}
