// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package staging

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/zeebo/blake3"
)

// artifactDomainKey is the BLAKE3 keyed-hash domain for artifact
// digests. Domain separation keeps these digests distinct from any
// other BLAKE3 use of the same bytes. The key is the ASCII domain
// name zero-padded to 32 bytes, so it stays readable in hex dumps.
var artifactDomainKey = [32]byte{
	's', 'q', 'e', 'l', 'f', '.', 'p', 'i', 'p', 'e', 'l', 'i', 'n', 'e', '.',
	'a', 'r', 't', 'i', 'f', 'a', 'c', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Manifest records what a run produced. It is the machine-readable
// companion to the run report: CI consumers use it to locate and
// integrity-check uploads.
type Manifest struct {
	// Version is the build's short version.
	Version string `json:"version"`

	// CreatedAt is when the manifest was written.
	CreatedAt time.Time `json:"created_at"`

	// Entries lists the run's artifacts in production order.
	Entries []ManifestEntry `json:"entries"`
}

// ManifestEntry is one artifact in the manifest. File artifacts
// carry a size and digest; image entries carry only their tag.
type ManifestEntry struct {
	Kind       Kind   `json:"kind"`
	Reference  string `json:"reference"`
	ProducedBy string `json:"produced_by"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
	Digest     string `json:"digest,omitempty"`
}

// WriteManifest digests the file artifacts and writes the manifest
// atomically into the area. Container image artifacts are recorded
// by tag without a digest; their exported archives are separate file
// artifacts with digests of their own.
func WriteManifest(area *Area, version string, createdAt time.Time, artifacts []Artifact) (*Manifest, error) {
	manifest := &Manifest{
		Version:   version,
		CreatedAt: createdAt.UTC(),
	}
	for _, artifact := range artifacts {
		entry := ManifestEntry{
			Kind:       artifact.Kind,
			Reference:  artifact.Reference,
			ProducedBy: artifact.ProducedBy,
		}
		if artifact.Kind != KindContainerImage {
			size, digest, err := digestFile(artifact.Reference)
			if err != nil {
				return nil, fmt.Errorf("staging: digesting %s: %w", artifact.Reference, err)
			}
			entry.SizeBytes = size
			entry.Digest = digest
		}
		manifest.Entries = append(manifest.Entries, entry)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("staging: encoding manifest: %w", err)
	}
	data = append(data, '\n')

	if err := WriteFileAtomic(area.ManifestPath(), data, 0o644); err != nil {
		return nil, fmt.Errorf("staging: %w", err)
	}
	return manifest, nil
}

// ReadManifest loads a previously written manifest.
func ReadManifest(area *Area) (*Manifest, error) {
	data, err := os.ReadFile(area.ManifestPath())
	if err != nil {
		return nil, fmt.Errorf("staging: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("staging: decoding manifest: %w", err)
	}
	return &manifest, nil
}

// DigestFile computes the artifact-domain BLAKE3 digest of a file,
// hex encoded.
func DigestFile(path string) (string, error) {
	_, digest, err := digestFile(path)
	return digest, err
}

func digestFile(path string) (int64, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer file.Close()

	// NewKeyed only fails for a wrong key length, which the fixed
	// array rules out.
	hasher, err := blake3.NewKeyed(artifactDomainKey[:])
	if err != nil {
		panic("staging: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	size, err := io.Copy(hasher, file)
	if err != nil {
		return 0, "", err
	}
	return size, hex.EncodeToString(hasher.Sum(nil)), nil
}
