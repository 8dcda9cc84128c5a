// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package staging

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// BundleDir packs every regular file under sourceDir into a
// zstd-compressed tar archive at destinationPath. Entry names are
// slash-separated paths relative to sourceDir. Log and export text
// compresses well under zstd, which is why the bundle uses it over
// a faster, weaker codec.
func BundleDir(sourceDir, destinationPath string) error {
	output, err := os.OpenFile(destinationPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("staging: creating bundle: %w", err)
	}

	compressor, err := zstd.NewWriter(output, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		output.Close()
		return fmt.Errorf("staging: zstd writer: %w", err)
	}
	archive := tar.NewWriter(compressor)

	walkErr := filepath.WalkDir(sourceDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		relative, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		return addFile(archive, path, filepath.ToSlash(relative))
	})

	// Close the writers innermost-first; a failed close means a
	// truncated archive, so every error counts.
	closeErr := archive.Close()
	if err := compressor.Close(); closeErr == nil {
		closeErr = err
	}
	if err := output.Close(); closeErr == nil {
		closeErr = err
	}

	if walkErr != nil {
		os.Remove(destinationPath)
		return fmt.Errorf("staging: bundling %s: %w", sourceDir, walkErr)
	}
	if closeErr != nil {
		os.Remove(destinationPath)
		return fmt.Errorf("staging: finishing bundle: %w", closeErr)
	}
	return nil
}

func addFile(archive *tar.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = name
	if err := archive.WriteHeader(header); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := io.Copy(archive, file); err != nil {
		return fmt.Errorf("archiving %s: %w", name, err)
	}
	return nil
}
