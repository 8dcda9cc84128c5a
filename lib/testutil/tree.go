// Copyright 2026 Datalust and contributors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTree materializes files under root. Keys are slash-separated
// paths relative to root; values are file contents. Parent directories
// are created as needed. Tests use this to lay out fake source
// checkouts and staging directories in a single call.
//
//	testutil.WriteTree(t, checkout, map[string]string{
//	    "Cargo.toml":  "[package]\nname = \"sqelf\"\n",
//	    "src/main.rs": "fn main() {}\n",
//	})
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("creating directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
}
