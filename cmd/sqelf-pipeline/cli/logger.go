// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewLogger creates the structured logger the commands run with.
// When stderr is a terminal it uses slog.TextHandler for
// human-readable output; when stderr is piped or redirected (the CI
// case) it uses slog.JSONHandler so the pipeline's own progress is as
// machine-readable as the logs it verifies. Verbose lowers the level
// to debug.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
