// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package builder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/datalust/sqelf-pipeline/lib/cmdrun"
	"github.com/datalust/sqelf-pipeline/staging"
)

// DefaultLinuxTarget is the musl triple the container image expects:
// fully static, runs on a scratch-like base.
const DefaultLinuxTarget = "x86_64-unknown-linux-musl"

// linuxBinaryName is the compiled binary's file name under cargo's
// target directory.
const linuxBinaryName = "sqelf"

// Linux cross-compiles the static release binary and stages it for
// the container build.
type Linux struct {
	options Options
	target  string
	logger  *slog.Logger
}

// NewLinux returns the linux build backend.
func NewLinux(options Options) *Linux {
	target := options.LinuxTarget
	if target == "" {
		target = DefaultLinuxTarget
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Linux{options: options, target: target, logger: logger}
}

// Platform returns "linux".
func (b *Linux) Platform() string { return "linux" }

// Build runs the cross build and stages the binary into the area's
// bin directory.
func (b *Linux) Build(ctx context.Context) ([]staging.Artifact, error) {
	b.logger.Info("building release binary", "target", b.target, "checkout", b.options.Checkout)

	result, err := b.options.Runner.Run(ctx, cmdrun.Spec{
		Program: "cross",
		Args:    []string{"build", "--release", "--target", b.target},
		Dir:     b.options.Checkout,
		Stream:  b.options.Stream,
		Grace:   buildGrace,
	})
	if err != nil {
		return nil, fmt.Errorf("cross build: %w", err)
	}
	if result.ExitCode != 0 {
		return nil, commandFailed("cross build", result)
	}

	compiled := filepath.Join(b.options.Checkout, "target", b.target, "release", linuxBinaryName)
	if _, err := os.Stat(compiled); err != nil {
		return nil, fmt.Errorf("cross build reported success but produced no binary: %w", err)
	}

	staged := filepath.Join(b.options.Area.BinDir(), linuxBinaryName)
	if err := copyFile(compiled, staged, 0o755); err != nil {
		return nil, fmt.Errorf("staging binary: %w", err)
	}

	b.logger.Info("binary staged", "path", staged, "duration", result.Duration)
	return []staging.Artifact{{
		Kind:       staging.KindBinary,
		Reference:  staged,
		ProducedBy: "build-linux",
	}}, nil
}
