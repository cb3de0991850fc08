package bootstrap

import (
	"io"
	"os"
	"time"

	"aibos-connector-sync/internal/config"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger: JSON in production, console output in development
func NewLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	if cfg.IsDevelopment() {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "connector-sync").Logger()
}
