// Package cli implements the taxdex command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/taxdex/internal/config"
	logpkg "github.com/kailas-cloud/taxdex/internal/logger"
	"github.com/kailas-cloud/taxdex/internal/version"
)

// RootOptions holds global flags and the state they load.
type RootOptions struct {
	Env      string
	LogLevel string

	Config config.Config
	Logger *zap.Logger
}

// NewRootCommand creates the root command for the taxdex CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "taxdex",
		Short:   "Query compiler and search service for taxon attribute indices",
		Version: version.String(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.Logger != nil {
				_ = opts.Logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Env, "env", config.GetEnv(), "config environment (local|dev|prod)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override logging.level")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))

	return cmd
}

func (o *RootOptions) load() error {
	cfg, err := config.Load(o.Env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level := cfg.Logging.Level
	if o.LogLevel != "" {
		level = o.LogLevel
	}
	logger, err := logpkg.NewLogger(o.Env, level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	o.Config = cfg
	o.Logger = logger
	return nil
}
