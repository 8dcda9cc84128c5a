// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command-tree framework the pipeline
// binaries are built on: named commands with pflag flag sets,
// structured help output, and typo suggestions for unknown commands
// and flags.
package cli
