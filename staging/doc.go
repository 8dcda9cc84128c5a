// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// Package staging owns the on-disk output tree of a pipeline run.
//
// Initialize produces a clean, fixed directory layout under the
// configured root. Initialization is idempotent: running it twice
// yields the same empty tree, and stale artifacts from a previous
// run never survive into the next one.
//
// The package also records what a run produced: an artifact manifest
// with keyed BLAKE3 digests for file artifacts, written atomically
// so a crashed run never leaves a half-written manifest, and a
// compressed diagnostic bundle of the captured logs.
package staging
