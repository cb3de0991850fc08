package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"aibos-connector-sync/internal/bootstrap"
	"aibos-connector-sync/internal/cli"
	"aibos-connector-sync/internal/config"

	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger := bootstrap.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to start service")
	}

	serveErr := cli.Serve(ctx, app, nil)

	if err := app.Close(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Failed to release resources")
	}
	if serveErr != nil {
		logger.Error().Err(serveErr).Msg("Service exited with error")
		os.Exit(1)
	}
}
