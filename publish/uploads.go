// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar"

	"github.com/datalust/sqelf-pipeline/staging"
)

// UploadSet walks the staging tree and returns the files, as paths
// relative to the staging root, that match any of the configured
// upload globs. The surrounding CI system collects exactly this set.
func UploadSet(area *staging.Area, globs []string) ([]string, error) {
	matched := make(map[string]bool)
	err := filepath.WalkDir(area.Root(), func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		relative, err := filepath.Rel(area.Root(), path)
		if err != nil {
			return err
		}
		relative = filepath.ToSlash(relative)
		for _, glob := range globs {
			ok, err := doublestar.Match(glob, relative)
			if err != nil {
				return fmt.Errorf("upload glob %q: %w", glob, err)
			}
			if ok {
				matched[relative] = true
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("computing upload set: %w", err)
	}

	var uploads []string
	for path := range matched {
		uploads = append(uploads, path)
	}
	sort.Strings(uploads)
	return uploads, nil
}
