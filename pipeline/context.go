// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"errors"
	"fmt"
	"regexp"
)

// DefaultShortVersion is the version a local (non-CI) run builds as.
const DefaultShortVersion = "99.99.99"

// shortVersionPattern is the three-part numeric version the package
// and image tags accept.
var shortVersionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// BuildContext is the run's identity, fixed at pipeline start from
// CLI flags and CI environment signals. It never changes during the
// run.
type BuildContext struct {
	// Platform selects the build backend, "linux" or "windows".
	Platform string

	// ShortVersion stamps the package and tags the image.
	ShortVersion string

	// IsPublishedBuild is the CI published-build flag. Publication
	// additionally requires a branch match.
	IsPublishedBuild bool

	// Branch is the branch under build.
	Branch string
}

// Validate checks the context, reporting all problems at once.
func (b BuildContext) Validate() error {
	var problems []error
	if b.Platform != "linux" && b.Platform != "windows" {
		problems = append(problems, fmt.Errorf("platform must be linux or windows, got %q", b.Platform))
	}
	if !shortVersionPattern.MatchString(b.ShortVersion) {
		problems = append(problems, fmt.Errorf("short version must be MAJOR.MINOR.PATCH, got %q", b.ShortVersion))
	}
	if b.Branch == "" {
		problems = append(problems, errors.New("branch is required"))
	}
	if err := errors.Join(problems...); err != nil {
		return fmt.Errorf("build context: %w", err)
	}
	return nil
}
