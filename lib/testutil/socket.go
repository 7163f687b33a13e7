// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// maxSocketPath is the usable length of sun_path on Linux, leaving
// room for the terminating NUL.
const maxSocketPath = 107

// SocketPath returns the path for a control socket called name in a
// private directory under /tmp. t.TempDir() nests too deeply for
// sun_path, so the directory is made by hand and removed when the test
// completes. The directory is mode 0700, the same as the per-user
// runtime directory the daemon listens in.
func SocketPath(t *testing.T, name string) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "tether-test-*")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(directory) })

	path := filepath.Join(directory, name)
	if len(path) > maxSocketPath {
		t.Fatalf("socket path %q is %d bytes, longer than sun_path allows", path, len(path))
	}
	return path
}
