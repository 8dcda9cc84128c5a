// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// Package history keeps a local SQLite ledger of pipeline runs: one
// row per run, one row per stage. The ledger answers "when did this
// start failing" without digging through CI job archives, and the
// history subcommand lists it.
//
// The ledger is an observation aid, not a pipeline dependency: a run
// that cannot write its row still succeeds.
package history
