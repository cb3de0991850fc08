// Package cli implements the syncctl command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"slices"

	"aibos-connector-sync/internal/bootstrap"
	"aibos-connector-sync/internal/config"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	EnvFile string
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the syncctl root command
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "syncctl",
		Short: "Operate the connector sync service",
		Long: `syncctl runs the connector sync service and triggers syncs, connection
tests and scheduled jobs by hand. Configuration comes from the environment,
optionally seeded from an env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "env file loaded before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewConnectorsCommand(opts))
	cmd.AddCommand(NewJobsCommand(opts))

	return cmd
}

// openApp loads configuration and wires the service. Logs go to stderr so
// command output on stdout stays parseable.
func openApp(ctx context.Context, opts *RootOptions) (*bootstrap.App, error) {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	logger := bootstrap.NewLogger(cfg, os.Stderr)

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to start", err)
	}
	return app, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
