// Package logging wraps log/slog with the field names used across the
// benchmark.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

type Logger struct {
	*slog.Logger
}

// New returns a text logger on stderr. verbose lowers the level to Debug.
func New(verbose bool) *Logger {
	return NewText(os.Stderr, Level(verbose))
}

func NewText(w io.Writer, lvl slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))}
}

func NewJSON(w io.Writer, lvl slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))}
}

// Noop discards everything.
func Noop() *Logger {
	return NewText(io.Discard, slog.Level(1000))
}

// Level maps the -v flag to a slog level.
func Level(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func (l *Logger) WithRun(id string) *Logger {
	return &Logger{Logger: l.Logger.With("run", id)}
}

func (l *Logger) WithDevice(name string) *Logger {
	return &Logger{Logger: l.Logger.With("device", name)}
}

// Stage logs one offload stage: a transfer, the dispatch or the readback.
func (l *Logger) Stage(stage string, bytes uint64, d time.Duration, err error) {
	if err != nil {
		l.Error("stage failed", "stage", stage, "bytes", bytes, "error", err)
		return
	}
	l.Debug("stage completed", "stage", stage, "bytes", bytes, "duration", d)
}
