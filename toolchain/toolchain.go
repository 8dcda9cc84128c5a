// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

// Package toolchain verifies that the external tools a build depends
// on are present and answering before any stage invokes them. A
// missing compiler discovered up front costs seconds; discovered
// mid-build it costs the whole run.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/datalust/sqelf-pipeline/lib/cmdrun"
)

// Required tool sets per build platform. Each tool must answer
// `--version` with exit code zero.
var (
	// LinuxTools builds the musl binary with cross and assembles
	// the container image with docker.
	LinuxTools = []string{"cargo", "cross", "docker"}

	// WindowsTools builds natively with cargo and packs the
	// installable package with nuget.
	WindowsTools = []string{"cargo", "nuget"}
)

// Versions maps tool name to the version line it reported.
type Versions map[string]string

// Verify queries every tool for its version. All tools are probed
// even after a failure, so one run reports every missing tool. The
// returned Versions holds an entry per healthy tool.
func Verify(ctx context.Context, runner cmdrun.Runner, logger *slog.Logger, tools []string) (Versions, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	versions := make(Versions, len(tools))
	var problems []error
	for _, tool := range tools {
		result, err := runner.Run(ctx, cmdrun.Spec{
			Program: tool,
			Args:    []string{"--version"},
		})
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", tool, err))
			continue
		}
		if result.ExitCode != 0 {
			problems = append(problems, fmt.Errorf("%s: --version exited %d: %s",
				tool, result.ExitCode, strings.TrimSpace(string(result.Stderr))))
			continue
		}

		version := versionLine(result)
		if version == "" {
			problems = append(problems, fmt.Errorf("%s: --version produced no output", tool))
			continue
		}
		versions[tool] = version
		logger.Info("toolchain tool present", "tool", tool, "version", version)
	}

	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return versions, nil
}

// versionLine extracts the first non-empty output line. Most tools
// print the version to stdout; a few use stderr.
func versionLine(result cmdrun.Result) string {
	for _, stream := range [][]byte{result.Stdout, result.Stderr} {
		for line := range strings.Lines(string(stream)) {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
