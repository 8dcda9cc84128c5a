// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package staging

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/datalust/sqelf-pipeline/lib/testutil"
)

func readBundle(t *testing.T, path string) map[string]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening bundle: %v", err)
	}
	defer file.Close()

	decompressor, err := zstd.NewReader(file)
	if err != nil {
		t.Fatalf("bundle is not a zstd stream: %v", err)
	}
	defer decompressor.Close()

	contents := make(map[string]string)
	archive := tar.NewReader(decompressor)
	for {
		header, err := archive.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading archive: %v", err)
		}
		data, err := io.ReadAll(archive)
		if err != nil {
			t.Fatalf("reading %s: %v", header.Name, err)
		}
		contents[header.Name] = string(data)
	}
	return contents
}

func TestBundleDirRoundTrip(t *testing.T) {
	source := t.TempDir()
	testutil.WriteTree(t, source, map[string]string{
		"sqelf.log":          strings.Repeat("sqelf listening on udp://0.0.0.0:12201\n", 50),
		"seq/ingestion.log":  "ingested 50 events\n",
		"seq/diagnostic.log": "no errors\n",
	})

	destination := filepath.Join(t.TempDir(), "diagnostics.tar.zst")
	if err := BundleDir(source, destination); err != nil {
		t.Fatalf("bundling: %v", err)
	}

	contents := readBundle(t, destination)
	if len(contents) != 3 {
		t.Fatalf("bundle holds %d files, want 3: %v", len(contents), contents)
	}
	if contents["seq/ingestion.log"] != "ingested 50 events\n" {
		t.Errorf("seq/ingestion.log = %q", contents["seq/ingestion.log"])
	}
	if !strings.Contains(contents["sqelf.log"], "listening") {
		t.Error("sqelf.log content lost")
	}

	// Repetitive log text must end up smaller than the source.
	info, err := os.Stat(destination)
	if err != nil {
		t.Fatalf("stat bundle: %v", err)
	}
	if info.Size() >= int64(len(contents["sqelf.log"])) {
		t.Errorf("bundle (%d bytes) did not compress the logs", info.Size())
	}
}

func TestBundleDirEmptySource(t *testing.T) {
	destination := filepath.Join(t.TempDir(), "empty.tar.zst")
	if err := BundleDir(t.TempDir(), destination); err != nil {
		t.Fatalf("bundling empty directory: %v", err)
	}
	if contents := readBundle(t, destination); len(contents) != 0 {
		t.Errorf("empty source produced entries: %v", contents)
	}
}

func TestBundleDirMissingSourceFails(t *testing.T) {
	destination := filepath.Join(t.TempDir(), "never.tar.zst")
	err := BundleDir(filepath.Join(t.TempDir(), "absent"), destination)
	if err == nil {
		t.Fatal("expected an error for a missing source directory")
	}
	if _, statErr := os.Stat(destination); !os.IsNotExist(statErr) {
		t.Error("failed bundle left a partial archive behind")
	}
}
