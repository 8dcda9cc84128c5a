// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// Package builder runs the native and container build stages.
//
// The native build has two backends behind one interface: the linux
// backend cross-compiles a static musl binary ready for
// containerization, the windows backend compiles natively and packs
// the versioned installable package. Exactly one backend runs per
// pipeline execution, selected by the build platform.
//
// ImageBuilder wraps the staged linux binary into a tagged container
// image and exports it as an lz4-compressed archive for upload.
package builder
