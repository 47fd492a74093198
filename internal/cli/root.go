// Package cli implements the scrutin command line.
package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-scrutin/internal/application"
	"github.com/ahrav/go-scrutin/internal/logger"
)

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// env is what the subcommands share once the root command has loaded the
// configuration.
type env struct {
	cfg    *application.Config
	logger *slog.Logger
}

// NewRootCmd builds the scrutin command tree.
func NewRootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)
	e := &env{}

	cmd := &cobra.Command{
		Use:           "scrutin",
		Short:         "Majority-judgment tabulation of CSV ballots",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if debug {
				cfg.Logging.Level = "debug"
			}

			l, err := logger.Setup(logger.Config{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Output: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}

			e.cfg = cfg
			e.logger = l
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file (optional)")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	cmd.AddCommand(tallyCmd(e))
	cmd.AddCommand(decodeCmd(e))
	cmd.AddCommand(serveCmd(e))
	return cmd
}

func loadConfig(path string) (*application.Config, error) {
	if path != "" {
		return application.LoadConfig(path)
	}
	cfg := application.DefaultConfig()
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
