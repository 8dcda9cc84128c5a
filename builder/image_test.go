// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package builder

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/pierrec/lz4/v4"

	"github.com/datalust/sqelf-pipeline/lib/cmdrun"
	"github.com/datalust/sqelf-pipeline/lib/dockercli"
	"github.com/datalust/sqelf-pipeline/lib/testutil"
	"github.com/datalust/sqelf-pipeline/staging"
)

const fakeImageTar = "fake image tarball bytes, repeated repeated repeated repeated"

// fakeDocker answers docker build and docker save, materializing the
// save output file like the real CLI does.
func fakeDocker(t *testing.T, calls *[][]string) *dockercli.Client {
	t.Helper()
	runner := cmdrun.Func(func(ctx context.Context, spec cmdrun.Spec) (cmdrun.Result, error) {
		if spec.Program != "docker" {
			t.Errorf("unexpected program %q", spec.Program)
		}
		*calls = append(*calls, spec.Args)
		if spec.Args[0] == "save" {
			output := spec.Args[2]
			if err := os.WriteFile(output, []byte(fakeImageTar), 0o644); err != nil {
				t.Fatalf("writing fake save output: %v", err)
			}
		}
		return cmdrun.Result{ExitCode: 0}, nil
	})
	return dockercli.New(runner, nil)
}

func stagedBinary(t *testing.T, area *staging.Area) staging.Artifact {
	t.Helper()
	testutil.WriteTree(t, area.Root(), map[string]string{"bin/sqelf": "ELF"})
	return staging.Artifact{
		Kind:       staging.KindBinary,
		Reference:  filepath.Join(area.BinDir(), "sqelf"),
		ProducedBy: "build-linux",
	}
}

func TestImageBuildTagsAndExports(t *testing.T) {
	area := testArea(t)
	var calls [][]string

	imageBuilder := &ImageBuilder{
		Docker:     fakeDocker(t, &calls),
		Area:       area,
		Repository: "datalust/sqelf",
		Dockerfile: "/checkout/Dockerfile",
		Version:    "1.2.3",
	}

	artifacts, err := imageBuilder.Build(context.Background(), stagedBinary(t, area))
	if err != nil {
		t.Fatalf("building image: %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("issued %d docker commands, want build and save", len(calls))
	}
	build := calls[0]
	if build[0] != "build" {
		t.Errorf("first command = %v", build)
	}
	if !slices.Contains(build, "datalust/sqelf:1.2.3") {
		t.Errorf("build args missing the tag: %v", build)
	}
	if !slices.Contains(build, "BINARY=bin/sqelf") {
		t.Errorf("build args missing the binary build-arg: %v", build)
	}
	if build[len(build)-1] != area.Root() {
		t.Errorf("build context = %q, want the area root", build[len(build)-1])
	}
	if calls[1][0] != "save" {
		t.Errorf("second command = %v", calls[1])
	}

	if len(artifacts) != 2 {
		t.Fatalf("got %d artifacts, want image + archive", len(artifacts))
	}
	image := artifacts[0]
	if image.Kind != staging.KindContainerImage || image.Reference != "datalust/sqelf:1.2.3" {
		t.Errorf("image artifact = %+v", image)
	}

	archive := artifacts[1]
	if archive.Kind != staging.KindImageArchive {
		t.Errorf("archive artifact = %+v", archive)
	}
	if filepath.Base(archive.Reference) != "sqelf-1.2.3.tar.lz4" {
		t.Errorf("archive name = %q", filepath.Base(archive.Reference))
	}

	// The intermediate tarball must be gone and the lz4 frame must
	// decompress back to it.
	if _, err := os.Stat(strings.TrimSuffix(archive.Reference, ".lz4")); !os.IsNotExist(err) {
		t.Error("uncompressed tarball left behind")
	}
	file, err := os.Open(archive.Reference)
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	defer file.Close()
	decompressed, err := io.ReadAll(lz4.NewReader(file))
	if err != nil {
		t.Fatalf("decompressing archive: %v", err)
	}
	if !bytes.Equal(decompressed, []byte(fakeImageTar)) {
		t.Error("archive round trip lost data")
	}
}

func TestImageBuildRejectsNonBinaryArtifact(t *testing.T) {
	area := testArea(t)
	imageBuilder := &ImageBuilder{
		Docker:     fakeDocker(t, &[][]string{}),
		Area:       area,
		Repository: "datalust/sqelf",
		Version:    "1.2.3",
	}

	_, err := imageBuilder.Build(context.Background(), staging.Artifact{
		Kind:      staging.KindPackage,
		Reference: "/x.nupkg",
	})
	if err == nil {
		t.Fatal("package artifact should be rejected")
	}
}

func TestImageBuildRejectsBinaryOutsideArea(t *testing.T) {
	area := testArea(t)
	imageBuilder := &ImageBuilder{
		Docker:     fakeDocker(t, &[][]string{}),
		Area:       area,
		Repository: "datalust/sqelf",
		Version:    "1.2.3",
	}

	_, err := imageBuilder.Build(context.Background(), staging.Artifact{
		Kind:      staging.KindBinary,
		Reference: "/elsewhere/sqelf",
	})
	if err == nil || !strings.Contains(err.Error(), "outside the staging area") {
		t.Fatalf("got %v, want an outside-area error", err)
	}
}

func TestImageBuildPropagatesDockerFailure(t *testing.T) {
	area := testArea(t)
	runner := cmdrun.Func(func(ctx context.Context, spec cmdrun.Spec) (cmdrun.Result, error) {
		return cmdrun.Result{ExitCode: 1, Stderr: []byte("no space left on device\n")}, nil
	})

	imageBuilder := &ImageBuilder{
		Docker:     dockercli.New(runner, nil),
		Area:       area,
		Repository: "datalust/sqelf",
		Version:    "1.2.3",
	}

	_, err := imageBuilder.Build(context.Background(), stagedBinary(t, area))
	if err == nil || !strings.Contains(err.Error(), "no space left") {
		t.Fatalf("got %v, want the docker diagnostic", err)
	}
}
