// Package logging builds the zerolog logger shared by the server and CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/puddle/internal/config"
	"golang.org/x/term"
)

// New returns a logger writing to out at the configured level. Format
// "console" forces human-readable output, "json" forces JSON, and an empty
// format picks console only when out is a terminal.
func New(cfg config.LogConfig, out io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("logging: level %q: %w", cfg.Level, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	w := out
	if useConsole(cfg.Format, out) {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

func useConsole(format string, out io.Writer) bool {
	switch format {
	case "console":
		return true
	case "json":
		return false
	}
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// OrNop dereferences l, falling back to a disabled logger.
func OrNop(l *zerolog.Logger) zerolog.Logger {
	if l == nil {
		return zerolog.Nop()
	}
	return *l
}
