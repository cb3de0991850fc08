package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"aibos-connector-sync/internal/bootstrap"
	"aibos-connector-sync/internal/infrastructure/api"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// NewServeCommand creates the serve command
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, scheduler and queue consumer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := openApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer app.Close(context.WithoutCancel(ctx))

			if noScheduler {
				app.Config.Schedule.Enabled = false
			}
			return Serve(ctx, app, nil)
		},
	}

	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run scheduled jobs in this process")
	return cmd
}

// Serve runs the HTTP server, the scheduler and the Kafka consumer until ctx
// is cancelled, then shuts them down. A nil listener listens on the
// configured port.
func Serve(ctx context.Context, app *bootstrap.App, listener net.Listener) error {
	cfg := app.Config
	logger := app.Logger

	server := api.NewServer(ctx, api.Deps{
		Connectors:      app.Connectors,
		Sync:            app.Runner,
		Webhooks:        app.Webhooks,
		Hub:             app.Hub,
		Metrics:         app.Metrics.Handler(),
		APIToken:        cfg.APIToken,
		MetaVerifyToken: cfg.Webhooks.MetaVerifyToken,
	}, logger.With().Str("component", "api").Logger())

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if listener != nil {
			logger.Info().Str("addr", listener.Addr().String()).Msg("HTTP server listening")
			err = httpServer.Serve(listener)
		} else {
			logger.Info().Str("port", cfg.Port).Msg("HTTP server listening")
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Schedule.Enabled {
		app.Scheduler.Start(gctx)
	} else {
		logger.Info().Msg("Scheduler disabled")
	}

	if consumer := app.NewSyncRequestConsumer(); consumer != nil {
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		if cfg.Schedule.Enabled {
			select {
			case <-app.Scheduler.Stop().Done():
			case <-shutdownCtx.Done():
				logger.Warn().Msg("Scheduled jobs still running at shutdown deadline")
			}
		}
		server.Wait()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Server stopped with error")
		return WrapExitError(ExitFailure, "server failed", err)
	}
	logger.Info().Msg("Server stopped")
	return nil
}
