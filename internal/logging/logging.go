// Package logging builds the process-wide structured logger, modeled
// on the teacher's ws/internal/shared/monitoring/logger.go NewLogger:
// zerolog, JSON by default, a pretty console writer in development,
// with panic recovery helpers for goroutines that must not take the
// process down with them.
package logging

import (
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// Format selects the logger's output encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatPretty Format = "pretty"
)

// Options configures New.
type Options struct {
	Level   string // debug, info, warn, error
	Format  Format
	Service string // attached as a constant "service" field
}

// New builds a zerolog.Logger per Options.
func New(opts Options) zerolog.Logger {
	var output io.Writer = os.Stdout
	if opts.Format == FormatPretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(output).With().Timestamp()
	if opts.Service != "" {
		logger = logger.Str("service", opts.Service)
	}
	return logger.Logger()
}

// RecoverPanic is deferred at the top of every long-lived goroutine
// (session tasks, the subscriber loop) so a single panicking goroutine
// logs and dies without taking the rest of the process with it.
func RecoverPanic(logger zerolog.Logger, goroutine string) {
	if r := recover(); r != nil {
		logger.Error().
			Str("goroutine", goroutine).
			Interface("panic", r).
			Str("stack", string(debug.Stack())).
			Msg("recovered goroutine panic")
	}
}
