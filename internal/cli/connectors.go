package cli

import (
	"context"
	"fmt"
	"io"

	"aibos-connector-sync/internal/domain"

	"github.com/spf13/cobra"
)

// NewConnectorsCommand creates the connectors command group
func NewConnectorsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connectors",
		Short: "Inspect and test connectors",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <workspace-id>",
		Short: "List the connectors of a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			app, err := openApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer app.Close(context.WithoutCancel(ctx))

			conns, err := app.Connectors.ListConnectors(ctx, args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list connectors", err)
			}
			if conns == nil {
				conns = []*domain.Connector{}
			}
			return newPrinter(rootOpts, cmd.OutOrStdout()).print(conns, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tENABLED\tLAST SYNC\tLAST STATUS")
				for _, c := range conns {
					lastSync := "-"
					if c.LastSyncAt != nil {
						lastSync = c.LastSyncAt.Format("2006-01-02 15:04:05")
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n", c.ID, c.Type, c.Status, c.IsEnabled, lastSync, c.LastSyncStatus)
				}
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "test <workspace-id> <connector-id>",
		Short: "Probe a connector's credentials against its provider",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			app, err := openApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer app.Close(context.WithoutCancel(ctx))

			ok, err := app.Connectors.TestConnector(ctx, args[0], args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to test connector", err)
			}
			if err := newPrinter(rootOpts, cmd.OutOrStdout()).print(map[string]bool{"ok": ok}, func(w io.Writer) {
				fmt.Fprintf(w, "connection ok: %t\n", ok)
			}); err != nil {
				return err
			}
			if !ok {
				return NewExitError(ExitFailure, "connection test failed")
			}
			return nil
		},
	})

	return cmd
}
