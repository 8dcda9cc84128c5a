// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package staging

import "fmt"

// Kind classifies an artifact.
type Kind string

const (
	// KindBinary is a release binary on disk, staged for
	// containerization.
	KindBinary Kind = "binary"

	// KindPackage is a versioned installable package on disk.
	KindPackage Kind = "package"

	// KindContainerImage is a tagged image in the local image store.
	// Its reference is the tag, not a path.
	KindContainerImage Kind = "container-image"

	// KindImageArchive is an exported container image on disk,
	// compressed for upload.
	KindImageArchive Kind = "image-archive"

	// KindRecordExport is the log server's exported CLEF record
	// stream from the verification run.
	KindRecordExport Kind = "record-export"

	// KindLogBundle is the compressed diagnostic bundle of captured
	// container logs.
	KindLogBundle Kind = "log-bundle"
)

// Artifact is one build output flowing between stages: binaries and
// packages feed the container build and the upload set, images feed
// the test environment and the publisher.
type Artifact struct {
	// Kind classifies the artifact.
	Kind Kind

	// Reference locates it: an absolute path for file artifacts, an
	// image tag for container images.
	Reference string

	// ProducedBy names the stage that created it.
	ProducedBy string
}

func (a Artifact) String() string {
	return fmt.Sprintf("%s %s (from %s)", a.Kind, a.Reference, a.ProducedBy)
}

// ByKind filters artifacts to one kind, preserving order.
func ByKind(artifacts []Artifact, kind Kind) []Artifact {
	var matching []Artifact
	for _, artifact := range artifacts {
		if artifact.Kind == kind {
			matching = append(matching, artifact)
		}
	}
	return matching
}
