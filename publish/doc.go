// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// Package publish pushes verified artifacts to their distribution
// targets: container images to the registry, packages to the package
// feed. Publication is gated on the published-build flag and the
// branch matching a configured pattern; a gated-off run performs no
// network calls at all.
//
// A publish failure never invalidates the build it would have
// shipped. The artifacts passed verification; only distribution
// failed. Callers report it as a warning and exit clean.
package publish
