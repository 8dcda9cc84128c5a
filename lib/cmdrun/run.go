// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package cmdrun

import (
	"context"
	"io"
	"time"
)

// Spec describes one command invocation.
type Spec struct {
	// Program is the executable name, resolved via PATH.
	Program string

	// Args are the command arguments, not including the program name.
	Args []string

	// Dir is the working directory. Empty means the calling process's
	// working directory.
	Dir string

	// Env holds additional environment variables appended to the
	// calling process's environment.
	Env map[string]string

	// Stdin, when non-nil, is connected to the command's standard
	// input. Used to pass credentials to programs that read them from
	// stdin. Stdin content is never logged.
	Stdin io.Reader

	// Stream, when non-nil, receives a live copy of the command's
	// stdout and stderr in addition to the captured Result buffers.
	// Builds set this to the pipeline's own stderr so that compiler
	// output reaches the operator as it is produced.
	Stream io.Writer

	// Grace is the window between SIGTERM and SIGKILL when the
	// context is cancelled. Zero means SIGKILL immediately; builds
	// that hold caches or locks set a positive grace so they can
	// release them.
	Grace time.Duration
}

// Result captures the outcome of a completed command.
type Result struct {
	// ExitCode is the command's exit status. Zero on success.
	ExitCode int

	// Stdout and Stderr hold the captured output streams.
	Stdout []byte
	Stderr []byte

	// Duration is the wall time from start to exit.
	Duration time.Duration
}

// Runner executes commands. Production code injects Local; tests
// inject a Func with canned responses.
type Runner interface {
	// Run executes the command described by spec and waits for it to
	// finish. A non-zero exit code is reported in the Result with a
	// nil error; the error return is reserved for failures to execute
	// at all (missing program, cancelled context, signal).
	Run(ctx context.Context, spec Spec) (Result, error)
}

// Func adapts a function to the Runner interface. Tests use it to
// fake external programs:
//
//	runner := cmdrun.Func(func(ctx context.Context, spec cmdrun.Spec) (cmdrun.Result, error) {
//	    calls = append(calls, spec)
//	    return cmdrun.Result{ExitCode: 0}, nil
//	})
type Func func(ctx context.Context, spec Spec) (Result, error)

// Run calls f.
func (f Func) Run(ctx context.Context, spec Spec) (Result, error) {
	return f(ctx, spec)
}
