// Package logx wires the pipeline's structured logging around zerolog.
package logx

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Init configures the global zerolog logger once at process startup.
// TTY stderr gets a human console writer; everything else gets plain JSON,
// matching cmd/cryptorun's main.go split in the teacher repo.
func Init(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if term.IsTerminal(int(os.Stderr.Fd())) {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// ForRun returns a sub-logger with the run's identifying fields bound once,
// so components never repeat run_id/component bookkeeping at every call site.
func ForRun(base zerolog.Logger, runID, component string) zerolog.Logger {
	return base.With().Str("run_id", runID).Str("component", component).Logger()
}

// ForSymbol narrows a component logger further to one symbol's sequential stream.
func ForSymbol(base zerolog.Logger, symbol string) zerolog.Logger {
	return base.With().Str("symbol", symbol).Logger()
}
