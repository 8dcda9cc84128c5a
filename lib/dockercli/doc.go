// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// Package dockercli wraps the docker command-line client in typed
// operations. The pipeline deliberately drives the docker CLI rather
// than the daemon API: the CLI is what the surrounding CI system
// guarantees to be present and configured (credentials helpers, proxy
// settings, buildkit selection), and the CLI's behavior is what
// operators can reproduce by hand when a run fails.
//
// All operations go through a cmdrun.Runner, so tests substitute
// canned responses and assert on the exact argument vectors without a
// docker daemon.
//
// Registry credentials pass through Login's reader onto the docker
// client's stdin. They never appear in argument vectors or log output.
package dockercli
