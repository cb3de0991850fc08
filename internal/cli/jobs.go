package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"aibos-connector-sync/internal/application"
	"aibos-connector-sync/internal/domain"

	"github.com/spf13/cobra"
)

// NewJobsCommand creates the jobs command group
func NewJobsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and run scheduled jobs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs and their next run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			app, err := openApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer app.Close(context.WithoutCancel(ctx))

			// entries only get a next time once the cron clock runs
			app.Scheduler.Start(ctx)
			defer app.Scheduler.Stop()

			jobs := app.Scheduler.Jobs()
			return newPrinter(rootOpts, cmd.OutOrStdout()).print(jobs, func(w io.Writer) {
				fmt.Fprintln(w, "JOB\tSCHEDULE\tNEXT")
				for _, j := range jobs {
					fmt.Fprintf(w, "%s\t%s\t%s\n", j.Name, j.Spec, j.Next.Format(time.RFC3339))
				}
			})
		},
	})

	var workspaceID string
	run := &cobra.Command{
		Use:   "run <job>",
		Short: "Run a job now (connector-sync, anomaly-detection, weekly-report)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := application.ParseJobName(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid job", err)
			}

			ctx := domain.WithTrigger(commandContext(cmd), domain.TriggerCLI)
			app, err := openApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer app.Close(context.WithoutCancel(ctx))

			if err := app.Scheduler.RunNow(ctx, job, workspaceID); err != nil {
				return WrapExitError(ExitFailure, "job failed", err)
			}
			return newPrinter(rootOpts, cmd.OutOrStdout()).print(map[string]string{"job": string(job), "status": "done"}, func(w io.Writer) {
				fmt.Fprintf(w, "%s done\n", job)
			})
		},
	}
	run.Flags().StringVar(&workspaceID, "workspace", "", "limit the job to one workspace")
	cmd.AddCommand(run)

	return cmd
}
