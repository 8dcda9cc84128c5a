// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"errors"
	"fmt"
)

// FailureKind classifies a pipeline failure. Every kind except
// KindPublishFailure is fatal: the remaining stages are abandoned and
// the process exits non-zero. A publish failure alone leaves the run
// good — the artifacts passed verification, only distribution failed.
type FailureKind int

const (
	// KindToolchainMissing: a required build tool is absent or not
	// answering.
	KindToolchainMissing FailureKind = iota

	// KindFilesystemError: the staging tree could not be prepared or
	// written.
	KindFilesystemError

	// KindBuildFailure: the native build backend failed.
	KindBuildFailure

	// KindContainerBuildFailure: the image build or export failed.
	KindContainerBuildFailure

	// KindStartupTimeout: the test environment did not come up
	// within its readiness window, or failed to start at all.
	KindStartupTimeout

	// KindVerificationFailure: the workload did not complete or a
	// verification channel rejected the run.
	KindVerificationFailure

	// KindPublishFailure: distribution of verified artifacts failed.
	KindPublishFailure

	// KindTeardownIncomplete: the environment teardown left
	// resources behind. The run's verification verdict stands, but
	// the host is dirty and the run fails.
	KindTeardownIncomplete
)

func (k FailureKind) String() string {
	switch k {
	case KindToolchainMissing:
		return "toolchain-missing"
	case KindFilesystemError:
		return "filesystem-error"
	case KindBuildFailure:
		return "build-failure"
	case KindContainerBuildFailure:
		return "container-build-failure"
	case KindStartupTimeout:
		return "startup-timeout"
	case KindVerificationFailure:
		return "verification-failure"
	case KindPublishFailure:
		return "publish-failure"
	case KindTeardownIncomplete:
		return "teardown-incomplete"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Fatal reports whether the kind aborts the pipeline.
func (k FailureKind) Fatal() bool {
	return k != KindPublishFailure
}

// Failure is a classified stage failure. The underlying error passes
// through unchanged so the CI log carries the original diagnostic.
type Failure struct {
	Kind  FailureKind
	Stage string
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.Stage, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// failed wraps a stage error into a Failure, keeping an existing
// classification if the error already carries one.
func failed(kind FailureKind, stage string, err error) error {
	var existing *Failure
	if errors.As(err, &existing) {
		return err
	}
	return &Failure{Kind: kind, Stage: stage, Err: err}
}

// KindOf extracts the failure classification from an error chain.
func KindOf(err error) (FailureKind, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Kind, true
	}
	return 0, false
}

// IsPublishFailure reports whether the error is a publish failure and
// nothing worse, the one non-fatal outcome.
func IsPublishFailure(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindPublishFailure
}
