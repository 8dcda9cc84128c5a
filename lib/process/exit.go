// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"
)

// Fatal writes "error: err" to stderr and exits with code 1. Use it in
// main() for errors from run() where the structured logger may not be
// initialized.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// FatalCode writes "error: err" to stderr and exits with the given
// code. Exit codes above 1 distinguish environmental failures (missing
// toolchain, unreachable daemon) from build and verification failures.
func FatalCode(code int, err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(code)
}
