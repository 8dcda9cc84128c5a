// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for pipeline packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. These are
// the only place in the test suite where real wall-clock timeouts are
// used; everything else waits on an injected clock.FakeClock.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation. Use it instead of time.Now() when tests need unique
// run IDs or event bodies.
//
// [WriteTree] materializes a map of relative paths to file contents
// under a root directory, creating parent directories as needed. Tests
// use it to lay out fake source checkouts and staging directories.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
