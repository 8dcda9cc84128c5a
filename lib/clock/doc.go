// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock interface parameter instead of calling
// time.Now, time.After, time.NewTicker, or time.Sleep directly. In
// production, Real() provides the standard library behavior. In tests,
// Fake() provides a deterministic clock that advances only when Advance
// is called.
//
// The pipeline leans on this for every wait it performs: container
// readiness polling, post-workload settle delays, and workload
// timeouts. Tests drive those waits with a FakeClock so that a
// thirty-second readiness timeout elapses in microseconds.
//
// # Wiring Pattern
//
// Add a Clock field to structs that wait:
//
//	type Controller struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// In production:
//
//	c := &Controller{clock: clock.Real()}
//
// In tests:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	c := &Controller{clock: fake}
//	// ... start the goroutine under test ...
//	fake.WaitForTimers(1)          // wait for it to register a wait
//	fake.Advance(30 * time.Second) // fire the wait deterministically
//
// # FakeClock Synchronization
//
// When a goroutine calls Sleep, After, or NewTicker on a FakeClock, it
// registers a pending wait. Use WaitForTimers to block until a specific
// number of waits are registered before calling Advance. This
// eliminates the race between wait registration and time advancement
// that plagues tests using time.Sleep for synchronization.
package clock
