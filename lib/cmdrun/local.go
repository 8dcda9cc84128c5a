// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package cmdrun

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Local runs commands as child processes of the pipeline. The zero
// value is usable; set Logger to see command lifecycle events at debug
// level.
type Local struct {
	// Logger receives a debug entry per command start and finish.
	// Nil discards them.
	Logger *slog.Logger
}

// Run executes the command described by spec.
//
// The command runs in its own process group so that cancellation kills
// the program and all its children (negative PID = all processes in
// the group). Without Setpgid, only the direct child receives the
// signal — grandchildren survive and hold open the inherited output
// pipes, blocking Run from returning until they finish.
//
// When spec.Grace is zero, SIGKILL is sent immediately on
// cancellation. When positive, SIGTERM is sent first to let the
// program clean up (flush caches, release locks, remove containers);
// if the group has not exited after the grace window, SIGKILL forces
// termination.
func (l *Local) Run(ctx context.Context, spec Spec) (Result, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cmd := exec.CommandContext(ctx, spec.Program, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Stdin = spec.Stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = io.Writer(&stdout)
	cmd.Stderr = io.Writer(&stderr)
	if spec.Stream != nil {
		cmd.Stdout = io.MultiWriter(&stdout, spec.Stream)
		cmd.Stderr = io.MultiWriter(&stderr, spec.Stream)
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		processGroupID := -cmd.Process.Pid
		if spec.Grace <= 0 {
			return unix.Kill(processGroupID, unix.SIGKILL)
		}
		if err := unix.Kill(processGroupID, unix.SIGTERM); err != nil {
			// SIGTERM failed (group already gone), escalate.
			return unix.Kill(processGroupID, unix.SIGKILL)
		}
		go func() {
			time.Sleep(spec.Grace)
			// Best-effort: ESRCH from a dead group is harmless.
			_ = unix.Kill(processGroupID, unix.SIGKILL)
		}()
		return nil
	}

	if len(spec.Env) > 0 {
		cmd.Env = os.Environ()
		for name, value := range spec.Env {
			cmd.Env = append(cmd.Env, name+"="+value)
		}
	}

	logger.Debug("running command",
		"program", spec.Program,
		"args", spec.Args,
		"dir", spec.Dir,
	)

	start := time.Now()
	err := cmd.Run()
	result := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitError *exec.ExitError
		if !errors.As(err, &exitError) {
			// Spawn failure, cancellation, or signal without an exit
			// status. The command may never have started.
			result.ExitCode = -1
			return result, err
		}
		result.ExitCode = exitError.ExitCode()
	}

	logger.Debug("command finished",
		"program", spec.Program,
		"exit_code", result.ExitCode,
		"duration", result.Duration,
	)
	return result, nil
}
