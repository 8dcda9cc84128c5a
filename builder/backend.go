// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package builder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/datalust/sqelf-pipeline/lib/cmdrun"
	"github.com/datalust/sqelf-pipeline/staging"
)

// buildGrace is the SIGTERM-to-SIGKILL window for cancelled builds.
// Cargo holds a target-directory lock that a hard kill can leave
// stale.
const buildGrace = 10 * time.Second

// Backend compiles the component for one platform and stages the
// resulting artifacts.
type Backend interface {
	// Platform returns the platform name, "linux" or "windows".
	Platform() string

	// Build runs the backend's build commands and returns the
	// staged artifacts.
	Build(ctx context.Context) ([]staging.Artifact, error)
}

// Options carries the dependencies common to both backends.
type Options struct {
	// Runner executes the build tools.
	Runner cmdrun.Runner

	// Logger receives build progress. Nil discards.
	Logger *slog.Logger

	// Area is the staging tree artifacts land in.
	Area *staging.Area

	// Checkout is the source checkout directory builds run in.
	Checkout string

	// Version is the build's short version, embedded in packages.
	Version string

	// LinuxTarget overrides the cross-compilation target triple.
	LinuxTarget string

	// PackageID overrides the windows package identifier.
	PackageID string

	// Stream, when non-nil, receives live compiler output.
	Stream io.Writer
}

// ForPlatform selects the backend for a platform name.
func ForPlatform(platform string, options Options) (Backend, error) {
	switch platform {
	case "linux":
		return NewLinux(options), nil
	case "windows":
		return NewWindows(options), nil
	default:
		return nil, fmt.Errorf("builder: unsupported platform %q", platform)
	}
}

// commandFailed renders a non-zero build tool exit into an error
// carrying the trailing stderr diagnostic.
func commandFailed(program string, result cmdrun.Result) error {
	const tailLimit = 4096
	tail := bytes.TrimSpace(result.Stderr)
	if len(tail) > tailLimit {
		tail = tail[len(tail)-tailLimit:]
	}
	return fmt.Errorf("%s exited %d: %s", program, result.ExitCode, tail)
}

// copyFile copies source to destination with the given mode, syncing
// the destination before close so a staged artifact is durable once
// the build stage reports success.
func copyFile(source, destination string, mode os.FileMode) error {
	input, err := os.Open(source)
	if err != nil {
		return err
	}
	defer input.Close()

	output, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(output, input); err != nil {
		output.Close()
		os.Remove(destination)
		return err
	}
	if err := output.Sync(); err != nil {
		output.Close()
		os.Remove(destination)
		return err
	}
	return output.Close()
}
