// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// Package workload defines the deterministic event sequences driven
// through a test environment.
//
// A Scenario is an ordered list of well-formed events plus optional
// fault frames. Events carry a unique test_id property so that the
// verification suite can correlate each one with the record the
// server exported for it. Fault frames are deliberately malformed
// payloads a healthy server drops silently; they are excluded from
// the expected record count.
//
// The built-in default scenario covers the interesting shapes: plain
// text, multi-byte unicode, a message large enough to require
// chunking, and an event with a wide property map. Custom scenarios
// load from JSONC files, so checked-in definitions can carry
// comments.
package workload
