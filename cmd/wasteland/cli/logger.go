// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger creates the structured logger for command output
// on stderr. format is "text", "json", or "auto": text when stderr is
// a terminal, JSON when piped (CI, scripts, supervisors).
//
// Callers scope the logger with command context via With():
//
//	logger = logger.With("agent", name, "relay", url)
func NewCommandLogger(level, format string) (*slog.Logger, error) {
	return newLogger(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), level, format)
}

func newLogger(w io.Writer, terminal bool, level, format string) (*slog.Logger, error) {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, Validation("invalid log level %q", level)
	}
	options := &slog.HandlerOptions{Level: slogLevel}

	text := terminal
	switch format {
	case "", "auto":
	case "text":
		text = true
	case "json":
		text = false
	default:
		return nil, Validation("invalid log format %q (want auto, text, or json)", format)
	}

	if text {
		return slog.New(slog.NewTextHandler(w, options)), nil
	}
	return slog.New(slog.NewJSONHandler(w, options)), nil
}
