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

// DefaultPackageID is the identifier of the installable package.
const DefaultPackageID = "Seq.Input.Gelf"

// Windows compiles the release binary natively and packs the
// versioned installable package.
type Windows struct {
	options   Options
	packageID string
	logger    *slog.Logger
}

// NewWindows returns the windows build backend.
func NewWindows(options Options) *Windows {
	packageID := options.PackageID
	if packageID == "" {
		packageID = DefaultPackageID
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Windows{options: options, packageID: packageID, logger: logger}
}

// Platform returns "windows".
func (b *Windows) Platform() string { return "windows" }

// Build compiles with cargo, then packs the nuspec with the build's
// version stamped in. The package lands directly in the area's pkg
// directory.
func (b *Windows) Build(ctx context.Context) ([]staging.Artifact, error) {
	b.logger.Info("building release binary", "checkout", b.options.Checkout)

	result, err := b.options.Runner.Run(ctx, cmdrun.Spec{
		Program: "cargo",
		Args:    []string{"build", "--release"},
		Dir:     b.options.Checkout,
		Stream:  b.options.Stream,
		Grace:   buildGrace,
	})
	if err != nil {
		return nil, fmt.Errorf("cargo build: %w", err)
	}
	if result.ExitCode != 0 {
		return nil, commandFailed("cargo build", result)
	}

	b.logger.Info("packing package", "id", b.packageID, "version", b.options.Version)
	result, err = b.options.Runner.Run(ctx, cmdrun.Spec{
		Program: "nuget",
		Args: []string{
			"pack", b.packageID + ".nuspec",
			"-Version", b.options.Version,
			"-OutputDirectory", b.options.Area.PkgDir(),
		},
		Dir:    b.options.Checkout,
		Stream: b.options.Stream,
	})
	if err != nil {
		return nil, fmt.Errorf("nuget pack: %w", err)
	}
	if result.ExitCode != 0 {
		return nil, commandFailed("nuget pack", result)
	}

	packagePath := filepath.Join(b.options.Area.PkgDir(),
		fmt.Sprintf("%s.%s.nupkg", b.packageID, b.options.Version))
	if _, err := os.Stat(packagePath); err != nil {
		return nil, fmt.Errorf("nuget pack reported success but produced no package: %w", err)
	}

	b.logger.Info("package staged", "path", packagePath)
	return []staging.Artifact{{
		Kind:       staging.KindPackage,
		Reference:  packagePath,
		ProducedBy: "build-windows",
	}}, nil
}
