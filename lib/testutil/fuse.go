// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// RequireFUSE skips the test unless the kernel FUSE device and a
// fusermount helper are available. Containers and CI runners often
// have neither.
func RequireFUSE(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skipf("FUSE not available: %v", err)
	}
	if _, err := exec.LookPath("fusermount3"); err == nil {
		return
	}
	if _, err := exec.LookPath("fusermount"); err != nil {
		t.Skip("FUSE not available: neither fusermount3 nor fusermount is on PATH")
	}
}

// MountDir creates an empty directory to mount on. It lives directly
// in /tmp so mount tables and error messages stay readable. The
// directory is removed when the test completes; the test must unmount
// before then.
func MountDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "blockfs-mnt-*")
	if err != nil {
		t.Fatalf("creating mount directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Remove(directory)
	})
	return directory
}

// ImagePath returns a path for a new image file under t.TempDir. The
// file does not exist yet.
func ImagePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), UniqueID("image")+".img")
}
