package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"aibos-connector-sync/internal/application"
	"aibos-connector-sync/internal/domain"

	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command group
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run connector syncs in the foreground",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "connector <workspace-id> <connector-id>",
		Short: "Sync one connector",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, rootOpts, func(ctx context.Context, runner *application.SyncRunner) ([]application.RunSummary, error) {
				summary, err := runner.SyncSingleConnector(ctx, args[0], args[1])
				if summary == nil {
					return nil, err
				}
				return []application.RunSummary{*summary}, err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "workspace <workspace-id>",
		Short: "Sync every connector of a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, rootOpts, func(ctx context.Context, runner *application.SyncRunner) ([]application.RunSummary, error) {
				return runner.SyncWorkspaceConnectors(ctx, args[0])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Sync every enabled connector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, rootOpts, func(ctx context.Context, runner *application.SyncRunner) ([]application.RunSummary, error) {
				return runner.SyncAllConnectors(ctx)
			})
		},
	})

	return cmd
}

func runSync(cmd *cobra.Command, opts *RootOptions, run func(ctx context.Context, runner *application.SyncRunner) ([]application.RunSummary, error)) error {
	ctx := domain.WithTrigger(commandContext(cmd), domain.TriggerCLI)

	app, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))

	summaries, runErr := run(ctx, app.Runner)

	if len(summaries) > 0 {
		if err := newPrinter(opts, cmd.OutOrStdout()).print(summaries, func(w io.Writer) {
			fmt.Fprintln(w, "CONNECTOR\tPROVIDER\tSTATUS\tRECORDS\tDURATION\tERROR")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					s.ConnectorID, s.Provider, s.Status, totalRecords(s.Records), s.Duration.Round(time.Millisecond), s.Error)
			}
		}); err != nil {
			return err
		}
	}

	switch {
	case runErr == nil:
	case errors.Is(runErr, domain.ErrNotFound), errors.Is(runErr, domain.ErrConnectorDisabled), errors.Is(runErr, domain.ErrSyncInProgress):
		return WrapExitError(ExitCommandError, "sync not started", runErr)
	default:
		return WrapExitError(ExitFailure, "sync failed", runErr)
	}

	for _, s := range summaries {
		if s.Status == application.RunStatusFailed {
			return NewExitError(ExitFailure, fmt.Sprintf("connector %s failed", s.ConnectorID))
		}
	}
	return nil
}

func totalRecords(records map[string]int) int {
	total := 0
	for _, n := range records {
		total += n
	}
	return total
}
