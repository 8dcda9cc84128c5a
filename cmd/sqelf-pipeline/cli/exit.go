// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError signals a non-zero exit code without printing an extra
// error message. A command that returns one is expected to have
// already written its own diagnosis; the main function exits with the
// code silently. Verification commands use this so a failed check
// exits 1 without a redundant error line after the per-channel
// report.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}
