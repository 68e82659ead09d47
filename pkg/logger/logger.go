// Package logger provides opinionated logging capabilities for the study CLI.
//
// All loggers are *slog.Logger values. The pretty handler is backed by
// charmbracelet/log for colorized terminal output; the JSON and text handlers
// are the standard slog ones. Output defaults to os.Stderr so that streamed
// chat replies on stdout are never interleaved with log lines.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level   slog.Level
	pretty  bool
	json    bool
	source  bool
	writers []io.Writer
}

// New creates a *slog.Logger configured by opts.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level:   slog.LevelInfo,
		writers: []io.Writer{os.Stderr},
	}

	for _, opt := range opts {
		opt(c)
	}

	var w io.Writer
	switch len(c.writers) {
	case 0:
		w = os.Stderr
	case 1:
		w = c.writers[0]
	default:
		w = io.MultiWriter(c.writers...)
	}

	switch {
	case c.pretty:
		return slog.New(newPrettyHandler(w, c))
	case c.json:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		}))
	}
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newPrettyHandler builds a charmbracelet/log logger, which implements
// slog.Handler.
func newPrettyHandler(w io.Writer, c *config) *charmlog.Logger {
	return charmlog.NewWithOptions(w, charmlog.Options{
		Level:           charmlog.Level(c.level),
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		ReportCaller:    c.source,
	})
}
