// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blockfs

import (
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/blockfs/lib/blockstore"
	"github.com/bureau-foundation/blockfs/lib/clock"
)

// testFormatTime is the superblock timestamp used by formatted test
// images.
var testFormatTime = time.Unix(1735689600, 0).UTC() // 2025-01-01T00:00:00Z

// newTestFileSystem formats a memory device with blockCount blocks
// and opens it.
func newTestFileSystem(t *testing.T, blockCount int) (*FileSystem, *blockstore.Device) {
	t.Helper()

	device, err := blockstore.NewMemory(blockCount)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	if err := Format(device, FormatOptions{Clock: clock.Fake(testFormatTime)}); err != nil {
		t.Fatalf("Format: %v", err)
	}
	fs, err := Open(device, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return fs, device
}

func mustCreate(t *testing.T, fs *FileSystem, path string, mode uint32) InodeIndex {
	t.Helper()
	index, err := fs.Create(path, mode)
	if err != nil {
		t.Fatalf("Create(%s): %v", path, err)
	}
	return index
}

func mustInode(t *testing.T, fs *FileSystem, path string) InodeIndex {
	t.Helper()
	index, err := fs.Inode(path)
	if err != nil {
		t.Fatalf("Inode(%s): %v", path, err)
	}
	return index
}

func requireErrorIs(t *testing.T, err, target error, operation string) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("%s: error = %v, want %v", operation, err, target)
	}
}

func entryNames(directory *Directory) []string {
	var names []string
	for _, entry := range directory.Entries() {
		names = append(names, entry.Name)
	}
	return names
}

const (
	fileMode      = ModeRegular | 0o644
	directoryMode = ModeDirectory | 0o755
)
