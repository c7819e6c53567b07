// Package logging initializes the process-wide slog logger.
//
// Terminal output goes through a tint handler; when a log file is
// configured, records are written there as JSON instead so runs can be
// inspected after the fact.
package logging

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// Options configures [Initialize].
type Options struct {
	// Level is a slog level name: debug, info, warn or error.
	Level string

	// File, when set, appends JSON records to the given path instead of
	// writing colored output to stderr.
	File string
}

// Initialize installs the default slog logger. It returns a cleanup
// function closing the log file, when one was opened.
func Initialize(opts Options) (func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
	}

	cleanup := func() {}
	var handler slog.Handler
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cleanup = func() { f.Close() }
		handler = slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: level})
	}

	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}
