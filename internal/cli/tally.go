package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-scrutin/infrastructure/csvballot"
	"github.com/ahrav/go-scrutin/internal/application"
	"github.com/ahrav/go-scrutin/internal/display"
	"github.com/ahrav/go-scrutin/internal/domain"
	"github.com/ahrav/go-scrutin/internal/ports"
)

// tallyOutput is the JSON form of one tabulated file.
type tallyOutput struct {
	File        string                `json:"file"`
	ExecutionID string                `json:"execution_id"`
	Token       string                `json:"token"`
	ShareURL    string                `json:"share_url"`
	Result      *domain.ScrutinResult `json:"result"`
}

func tallyCmd(e *env) *cobra.Command {
	var (
		scale   int
		asJSON  bool
		baseURL string
	)

	c := &cobra.Command{
		Use:   "tally FILE...",
		Short: "Tabulate one or more CSV ballot files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, files []string) error {
			if cmd.Flags().Changed("scale") {
				if _, ok := domain.ScaleOfSize(scale); !ok && scale != 0 {
					return fmt.Errorf("--scale must be 0, 5 or 6, got %d", scale)
				}
			} else {
				scale = e.cfg.Scrutin.Scale
			}
			if baseURL == "" {
				baseURL = e.cfg.Server.BaseURL
			}

			svc, _, err := newService(cmd.Context(), e, prometheus.NewRegistry())
			if err != nil {
				return err
			}

			var tabs []*application.Tabulation
			if len(files) == 1 {
				tab, err := svc.TabulateSource(cmd.Context(), csvballot.NewFile(files[0]), scale, files[0])
				if err != nil {
					return fmt.Errorf("%s: %w", files[0], err)
				}
				tabs = append(tabs, tab)
			} else {
				sources := make([]ports.BallotSource, 0, len(files))
				for _, f := range files {
					sources = append(sources, csvballot.NewFile(f))
				}
				tabs, err = svc.TabulateAll(cmd.Context(), sources, scale)
				if err != nil {
					return err
				}
			}

			outputs := make([]tallyOutput, 0, len(tabs))
			for i, tab := range tabs {
				outputs = append(outputs, tallyOutput{
					File:        files[i],
					ExecutionID: tab.ExecutionID,
					Token:       tab.Token,
					ShareURL:    display.ShareURL(baseURL, tab.Token),
					Result:      tab.Result,
				})
			}

			if asJSON {
				enc := json.NewEncoder(out(cmd))
				enc.SetIndent("", "  ")
				if len(outputs) == 1 {
					return enc.Encode(outputs[0])
				}
				return enc.Encode(outputs)
			}
			return printTallies(out(cmd), outputs)
		},
	}

	c.Flags().IntVar(&scale, "scale", 0, "Mention scale size: 5, 6, or 0 to infer (defaults to the configured scale)")
	c.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	c.Flags().StringVar(&baseURL, "base-url", "", "Prefix of share links (defaults to the configured base URL)")
	return c
}

func printTallies(w io.Writer, outputs []tallyOutput) error {
	for i, o := range outputs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if len(outputs) > 1 {
			fmt.Fprintf(w, "== %s ==\n", o.File)
		}
		if err := printRanking(w, o.Result); err != nil {
			return err
		}
		fmt.Fprintf(w, "Token: %s\n", o.Token)
		fmt.Fprintf(w, "Lien:  %s\n", o.ShareURL)
	}
	return nil
}

func printRanking(w io.Writer, result *domain.ScrutinResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "RANG\tCHOIX\tMENTION\tSCORE\n")
	for _, c := range result.Ranked() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", c.Rank, c.Name, c.MajorityMention, c.DisplayScore())
	}
	return tw.Flush()
}
