// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/blockfs/lib/blockfs"
	"github.com/bureau-foundation/blockfs/lib/clock"
	"github.com/bureau-foundation/blockfs/lib/config"
	"github.com/bureau-foundation/blockfs/lib/testutil"
)

func TestRunMountFormatsServesAndFlushes(t *testing.T) {
	testutil.RequireFUSE(t)

	cfg := config.Default()
	cfg.Image = testutil.ImagePath(t)
	cfg.Mountpoint = testutil.MountDir(t)
	cfg.Format.BlockCount = 64
	cfg.SyncInterval = "1s"
	fake := clock.Fake(time.Unix(1735689600, 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- runMount(ctx, cfg, fake, discardLogger)
	}()

	// The flush loop starts after the mount is up.
	ready := make(chan struct{})
	go func() {
		fake.WaitForTickers(1)
		close(ready)
	}()
	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("runMount returned before mounting: %v", err)
	case <-time.After(10 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("timed out waiting for the mount")
	}

	if err := os.WriteFile(filepath.Join(cfg.Mountpoint, "hello"), []byte("world"), 0o644); err != nil {
		t.Fatalf("WriteFile through the mount: %v", err)
	}
	fake.Advance(time.Second)

	cancel()
	if err := testutil.RequireReceive(t, done, 10*time.Second, "runMount did not return after cancel"); err != nil {
		t.Fatalf("runMount: %v", err)
	}

	populate(t, cfg.Image, func(fs *blockfs.FileSystem) {
		buffer := make([]byte, 16)
		read, err := fs.ReadAt("/hello", buffer, 0)
		if err != nil {
			t.Fatalf("ReadAt: %v", err)
		}
		if string(buffer[:read]) != "world" {
			t.Errorf("content after unmount = %q, want %q", buffer[:read], "world")
		}
		if total := fs.Usage().TotalBlocks; total != 64 {
			t.Errorf("formatted image has %d blocks, want 64", total)
		}
	})
}
