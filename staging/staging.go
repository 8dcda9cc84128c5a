// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Subdirectories of every staging area. The names are part of the
// pipeline's external surface: the surrounding CI system globs them
// for upload.
var subdirectories = []string{
	"bin",    // native binaries staged for containerization
	"pkg",    // versioned installable packages
	"images", // exported container image archives
	"output", // structured-log exports read by verification
	"logs",   // captured container logs
}

// Area is an initialized staging tree. All paths it hands out are
// absolute.
type Area struct {
	root string
}

// Initialize ensures the staging root exists and holds nothing from
// a previous run. Calling it twice in a row yields the same clean
// state. The root directory itself is kept (only its contents are
// cleared), so a bind-mounted or symlinked root keeps its identity.
func Initialize(root string) (*Area, error) {
	if root == "" {
		return nil, errors.New("staging: root path is required")
	}
	absolute, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("staging: resolving root %q: %w", root, err)
	}

	if err := os.MkdirAll(absolute, 0o755); err != nil {
		return nil, fmt.Errorf("staging: creating root: %w", err)
	}

	entries, err := os.ReadDir(absolute)
	if err != nil {
		return nil, fmt.Errorf("staging: reading root: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(absolute, entry.Name())); err != nil {
			return nil, fmt.Errorf("staging: clearing stale %s: %w", entry.Name(), err)
		}
	}

	for _, name := range subdirectories {
		if err := os.Mkdir(filepath.Join(absolute, name), 0o755); err != nil {
			return nil, fmt.Errorf("staging: creating %s: %w", name, err)
		}
	}
	return &Area{root: absolute}, nil
}

// Open returns an Area over an existing staging tree without
// clearing it. Used by commands that inspect a previous run.
func Open(root string) (*Area, error) {
	if root == "" {
		return nil, errors.New("staging: root path is required")
	}
	absolute, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("staging: resolving root %q: %w", root, err)
	}
	info, err := os.Stat(absolute)
	if err != nil {
		return nil, fmt.Errorf("staging: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("staging: %s is not a directory", absolute)
	}
	return &Area{root: absolute}, nil
}

// Root returns the absolute staging root.
func (a *Area) Root() string { return a.root }

// BinDir holds native binaries staged for containerization.
func (a *Area) BinDir() string { return filepath.Join(a.root, "bin") }

// PkgDir holds versioned installable packages.
func (a *Area) PkgDir() string { return filepath.Join(a.root, "pkg") }

// ImagesDir holds exported container image archives.
func (a *Area) ImagesDir() string { return filepath.Join(a.root, "images") }

// OutputDir holds structured-log exports.
func (a *Area) OutputDir() string { return filepath.Join(a.root, "output") }

// LogsDir holds captured container logs.
func (a *Area) LogsDir() string { return filepath.Join(a.root, "logs") }

// ReportPath is the run report, one JSON object per line.
func (a *Area) ReportPath() string { return filepath.Join(a.root, "report.jsonl") }

// ManifestPath is the artifact manifest.
func (a *Area) ManifestPath() string { return filepath.Join(a.root, "manifest.json") }

// BundlePath is the compressed diagnostic bundle.
func (a *Area) BundlePath() string { return filepath.Join(a.root, "diagnostics.tar.zst") }
