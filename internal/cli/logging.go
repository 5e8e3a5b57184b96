package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
)

// setupLogging installs the process-wide slog handler. Terminals get the
// text handler, everything else (pipes, log collectors) gets JSON.
func setupLogging(w *os.File) {
	terminal := isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd())
	slog.SetDefault(slog.New(newLogHandler(w, terminal && !jsonOut, logLevel())))
}

func logLevel() slog.Level {
	switch {
	case verbose:
		return slog.LevelDebug
	case quiet:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func newLogHandler(w io.Writer, text bool, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if text {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
