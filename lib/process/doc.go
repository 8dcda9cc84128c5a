// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers. These functions
// centralize the raw stderr output that exists before the structured
// logger is initialized: fatal error reporting in main() for errors
// from run(). All other operational output goes through slog.
package process
