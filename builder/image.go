// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package builder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/datalust/sqelf-pipeline/lib/dockercli"
	"github.com/datalust/sqelf-pipeline/staging"
)

// ImageBuilder wraps the staged linux binary into a tagged container
// image and exports the image as an lz4-compressed archive. Image
// tarballs are binary data, so the export uses lz4 over a stronger,
// slower codec.
type ImageBuilder struct {
	// Docker issues the image operations.
	Docker *dockercli.Client

	// Logger receives build progress. Nil discards.
	Logger *slog.Logger

	// Area is the staging tree. The build context is the area root,
	// so the Dockerfile addresses the staged binary as bin/sqelf.
	Area *staging.Area

	// Repository is the image repository, e.g. "datalust/sqelf".
	Repository string

	// Dockerfile is the path to the Dockerfile, typically inside
	// the source checkout.
	Dockerfile string

	// Version tags the image.
	Version string

	// Stream, when non-nil, receives live build output.
	Stream io.Writer
}

// Build assembles and exports the image from a staged binary
// artifact. It returns the tagged image and the compressed archive
// as separate artifacts: the publisher pushes the tag, the CI system
// uploads the archive.
func (b *ImageBuilder) Build(ctx context.Context, binary staging.Artifact) ([]staging.Artifact, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if binary.Kind != staging.KindBinary {
		return nil, fmt.Errorf("image build needs a binary artifact, got %s", binary.Kind)
	}
	relative, err := filepath.Rel(b.Area.Root(), binary.Reference)
	if err != nil || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("binary %s is outside the staging area", binary.Reference)
	}

	tag := b.Repository + ":" + b.Version
	logger.Info("building container image", "tag", tag)

	err = b.Docker.Build(ctx, dockercli.BuildSpec{
		ContextDir: b.Area.Root(),
		Dockerfile: b.Dockerfile,
		Tag:        tag,
		BuildArgs: map[string]string{
			"BINARY":  filepath.ToSlash(relative),
			"VERSION": b.Version,
		},
		Stream: b.Stream,
	})
	if err != nil {
		return nil, err
	}

	archive, err := b.export(ctx, tag)
	if err != nil {
		return nil, err
	}

	logger.Info("image built", "tag", tag, "archive", archive)
	return []staging.Artifact{
		{Kind: staging.KindContainerImage, Reference: tag, ProducedBy: "build-image"},
		{Kind: staging.KindImageArchive, Reference: archive, ProducedBy: "build-image"},
	}, nil
}

// export saves the image to a tarball and compresses it in place.
func (b *ImageBuilder) export(ctx context.Context, tag string) (string, error) {
	tarPath := filepath.Join(b.Area.ImagesDir(), fmt.Sprintf("sqelf-%s.tar", b.Version))
	if err := b.Docker.SaveTo(ctx, tag, tarPath); err != nil {
		return "", err
	}
	defer os.Remove(tarPath)

	archivePath := tarPath + ".lz4"
	if err := compressFile(tarPath, archivePath); err != nil {
		return "", fmt.Errorf("compressing image export: %w", err)
	}
	return archivePath, nil
}

// compressFile writes an lz4 frame of source at destination. Frames
// (unlike raw blocks) are what the lz4 command-line tool reads, so
// the archive is usable without this pipeline.
func compressFile(source, destination string) error {
	input, err := os.Open(source)
	if err != nil {
		return err
	}
	defer input.Close()

	output, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	compressor := lz4.NewWriter(output)
	if _, err := io.Copy(compressor, input); err != nil {
		output.Close()
		os.Remove(destination)
		return err
	}
	if err := compressor.Close(); err != nil {
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
