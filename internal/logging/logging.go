// Package logging builds the root zerolog logger of a run.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName is attached to every log line.
const ServiceName = "taxiprep"

// Config selects the level and encoding of the root logger.
type Config struct {
	// Level is a zerolog level name; unknown or empty means info.
	Level string
	// Format is "json" (default) or "console".
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New returns the root logger. The pipeline derives per-run children from it
// with a run_id field.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", ServiceName).
		Logger()
}
