// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline drives the build-and-verify run: a sequential,
// fail-fast stage machine from toolchain verification through
// conditional publication. The driver guarantees that a started test
// environment is torn down exactly once on every exit path, and that
// the run report and history ledger are written whether the run
// succeeded or not.
package pipeline
