// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-N" where N is a
// monotonically increasing integer. Use this instead of time.Now()
// when tests need unique identifiers for run IDs, container names, or
// event bodies that must be distinguishable across subtests.
//
//	runID := testutil.UniqueID("run")     // "run-1", "run-2", ...
//	name := testutil.UniqueID("sqelf-ci") // "sqelf-ci-3", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}
