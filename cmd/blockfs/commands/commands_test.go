// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/blockfs/cmd/blockfs/cli"
	"github.com/bureau-foundation/blockfs/lib/blockfs"
	"github.com/bureau-foundation/blockfs/lib/blockstore"
	"github.com/bureau-foundation/blockfs/lib/clock"
	"github.com/bureau-foundation/blockfs/lib/config"
	"github.com/bureau-foundation/blockfs/lib/testutil"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// execute runs the command tree with args and returns what it wrote
// to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.ConfigEnvironmentVariable, "")
	var stdout bytes.Buffer
	root := newRoot(&stdout)
	root.Stderr = io.Discard
	err := root.Execute(args)
	return stdout.String(), err
}

// formattedImage runs mkfs on a fresh path and returns it.
func formattedImage(t *testing.T, blockCount string) string {
	t.Helper()
	image := testutil.ImagePath(t)
	if _, err := execute(t, "mkfs", "--block-count", blockCount, image); err != nil {
		t.Fatalf("mkfs: %v", err)
	}
	return image
}

// populate opens image through the engine and applies build to it.
func populate(t *testing.T, image string, build func(*blockfs.FileSystem)) {
	t.Helper()
	device, err := blockstore.Open(image, 0)
	if err != nil {
		t.Fatalf("opening image: %v", err)
	}
	defer device.Close()
	fs, err := blockfs.Open(device, blockfs.Options{Logger: discardLogger})
	if err != nil {
		t.Fatalf("opening filesystem: %v", err)
	}
	build(fs)
}

func TestMkfs(t *testing.T) {
	image := testutil.ImagePath(t)
	output, err := execute(t, "mkfs", "--block-count", "64", image)
	if err != nil {
		t.Fatalf("mkfs: %v", err)
	}
	if want := "formatted " + image + ": 64 blocks of 4.0 KiB (256 KiB)\n"; output != want {
		t.Errorf("output = %q, want %q", output, want)
	}

	info, err := os.Stat(image)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != 64*blockstore.BlockSize {
		t.Errorf("image is %d bytes, want %d", info.Size(), 64*blockstore.BlockSize)
	}
}

func TestMkfsRejectsBadBlockCount(t *testing.T) {
	image := testutil.ImagePath(t)
	if _, err := execute(t, "mkfs", "--block-count", "100", image); err == nil {
		t.Fatal("mkfs accepted a block count that is not a multiple of 8")
	}
	if _, err := os.Stat(image); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("rejected mkfs left an image behind: %v", err)
	}
}

func TestMkfsExistingImage(t *testing.T) {
	image := formattedImage(t, "64")
	populate(t, image, func(fs *blockfs.FileSystem) {
		if _, err := fs.Create("/keep", blockfs.ModeRegular|0o644); err != nil {
			t.Fatalf("Create: %v", err)
		}
	})

	declined := func(string) (bool, error) { return false, nil }
	if err := runMkfs(io.Discard, image, 64, false, declined, discardLogger); err == nil {
		t.Fatal("mkfs replaced an image after the prompt was declined")
	}
	populate(t, image, func(fs *blockfs.FileSystem) {
		if _, err := fs.Inode("/keep"); err != nil {
			t.Errorf("declined mkfs lost /keep: %v", err)
		}
	})

	var asked string
	accepted := func(question string) (bool, error) { asked = question; return true, nil }
	if err := runMkfs(io.Discard, image, 128, false, accepted, discardLogger); err != nil {
		t.Fatalf("mkfs after confirmation: %v", err)
	}
	if !strings.Contains(asked, image) {
		t.Errorf("prompt %q does not name the image", asked)
	}
	populate(t, image, func(fs *blockfs.FileSystem) {
		if _, err := fs.Inode("/keep"); !errors.Is(err, blockfs.ErrNotFound) {
			t.Errorf("/keep survived reformatting: %v", err)
		}
		if total := fs.Usage().TotalBlocks; total != 128 {
			t.Errorf("reformatted image has %d blocks, want 128", total)
		}
	})

	if _, err := execute(t, "mkfs", "--force", "--block-count", "64", image); err != nil {
		t.Fatalf("mkfs --force: %v", err)
	}
}

func TestInspect(t *testing.T) {
	image := formattedImage(t, "64")

	output, err := execute(t, "inspect", image)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{
		"256 KiB (64 blocks of 4.0 KiB)",
		"blockfs v1, formatted ",
		"4 used, 60 free (240 KiB free)",
		"1 used, 255 free",
		"99 entries each, names up to 11 bytes",
		`"block_count": 64`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("inspect output missing %q:\n%s", want, output)
		}
	}
}

func TestInspectDamagedImage(t *testing.T) {
	image := formattedImage(t, "64")
	device, err := blockstore.Open(image, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	block, _ := device.Block(blockfs.SuperblockBlock)
	// Byte 20 lies inside the stored checksum.
	block[20] ^= 0x01
	if err := device.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	output, err := execute(t, "inspect", image)
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 2 {
		t.Fatalf("inspect of a damaged image = %v, want exit code 2", err)
	}
	if !strings.Contains(output, "damaged") {
		t.Errorf("inspect output does not report damage:\n%s", output)
	}
}

func TestList(t *testing.T) {
	image := formattedImage(t, "64")
	populate(t, image, func(fs *blockfs.FileSystem) {
		if _, err := fs.Create("/notes", blockfs.ModeDirectory|0o755); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := fs.Create("/notes/b.txt", blockfs.ModeRegular|0o600); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := fs.Create("/notes/a.txt", blockfs.ModeRegular|0o644); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := fs.WriteAt("/notes/a.txt", []byte("hello"), 0); err != nil {
			t.Fatalf("WriteAt: %v", err)
		}
		if _, err := fs.Create("/top", blockfs.ModeRegular|0o644); err != nil {
			t.Fatalf("Create: %v", err)
		}
	})

	output, err := execute(t, "ls", image)
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	var paths []string
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		fields := strings.Fields(line)
		paths = append(paths, fields[len(fields)-1])
	}
	want := []string{"/", "/notes", "/notes/a.txt", "/notes/b.txt", "/top"}
	if strings.Join(paths, " ") != strings.Join(want, " ") {
		t.Errorf("ls paths = %v, want %v\n%s", paths, want, output)
	}
	if !strings.Contains(output, "drwxr-xr-x") || !strings.Contains(output, "-rw-------") {
		t.Errorf("ls output missing modes:\n%s", output)
	}

	output, err = execute(t, "ls", image, "/notes/a.txt")
	if err != nil {
		t.Fatalf("ls of a file: %v", err)
	}
	if fields := strings.Fields(output); len(fields) != 4 || fields[2] != "5" {
		t.Errorf("ls of a file = %q, want mode, inode, size 5, path", output)
	}

	if _, err := execute(t, "ls", image, "/missing"); !errors.Is(err, blockfs.ErrNotFound) {
		t.Errorf("ls of a missing path = %v, want ErrNotFound", err)
	}
}

func TestListMissingImage(t *testing.T) {
	image := filepath.Join(t.TempDir(), "absent.img")
	if _, err := execute(t, "ls", image); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ls of a missing image = %v, want ErrNotExist", err)
	}
	if _, err := os.Stat(image); !errors.Is(err, os.ErrNotExist) {
		t.Error("ls created the image it was asked to read")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	for _, compression := range []string{"zstd", "lz4"} {
		t.Run(compression, func(t *testing.T) {
			image := formattedImage(t, "64")
			populate(t, image, func(fs *blockfs.FileSystem) {
				if _, err := fs.Create("/data", blockfs.ModeRegular|0o644); err != nil {
					t.Fatalf("Create: %v", err)
				}
				if _, err := fs.WriteAt("/data", []byte("snapshot me"), 0); err != nil {
					t.Fatalf("WriteAt: %v", err)
				}
			})

			snapshot := filepath.Join(t.TempDir(), "disk.snap")
			output, err := execute(t, "snapshot", "export", "--compression", compression, image, snapshot)
			if err != nil {
				t.Fatalf("export: %v", err)
			}
			if !strings.Contains(output, compression) {
				t.Errorf("export output %q does not name %s", output, compression)
			}

			restored := filepath.Join(t.TempDir(), "restored.img")
			output, err = execute(t, "snapshot", "import", snapshot, restored)
			if err != nil {
				t.Fatalf("import: %v", err)
			}
			if !strings.Contains(output, "64 blocks") {
				t.Errorf("import output = %q", output)
			}

			populate(t, restored, func(fs *blockfs.FileSystem) {
				buffer := make([]byte, 64)
				read, err := fs.ReadAt("/data", buffer, 0)
				if err != nil {
					t.Fatalf("ReadAt: %v", err)
				}
				if string(buffer[:read]) != "snapshot me" {
					t.Errorf("restored content = %q", buffer[:read])
				}
			})

			if _, err := execute(t, "snapshot", "import", snapshot, restored); err == nil {
				t.Error("import replaced an existing image without --force")
			}
			if _, err := execute(t, "snapshot", "import", "--force", snapshot, restored); err != nil {
				t.Errorf("import --force: %v", err)
			}
		})
	}
}

func TestSnapshotEncrypted(t *testing.T) {
	image := formattedImage(t, "64")
	populate(t, image, func(fs *blockfs.FileSystem) {
		if _, err := fs.Create("/secret", blockfs.ModeRegular|0o600); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := fs.WriteAt("/secret", []byte("classified"), 0); err != nil {
			t.Fatalf("WriteAt: %v", err)
		}
	})

	identity := filepath.Join(t.TempDir(), "identity.txt")
	output, err := execute(t, "snapshot", "keygen", identity)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	recipient := strings.TrimSpace(output)
	if !strings.HasPrefix(recipient, "age1") {
		t.Fatalf("keygen printed %q, want an age public key", recipient)
	}

	snapshot := filepath.Join(t.TempDir(), "disk.snap.age")
	output, err = execute(t, "snapshot", "export", "--recipient", recipient, image, snapshot)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(output, "encrypted to 1 recipients") {
		t.Errorf("export output = %q", output)
	}
	raw, err := os.ReadFile(snapshot)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(raw), "age-encryption.org/v1\n") {
		t.Errorf("snapshot does not start with an age header")
	}

	restored := filepath.Join(t.TempDir(), "restored.img")
	if _, err := execute(t, "snapshot", "import", snapshot, restored); err == nil || !strings.Contains(err.Error(), "--identity") {
		t.Errorf("import of an encrypted snapshot without an identity = %v", err)
	}
	if _, err := execute(t, "snapshot", "import", "--identity", identity, snapshot, restored); err != nil {
		t.Fatalf("import --identity: %v", err)
	}
	populate(t, restored, func(fs *blockfs.FileSystem) {
		buffer := make([]byte, 32)
		read, err := fs.ReadAt("/secret", buffer, 0)
		if err != nil {
			t.Fatalf("ReadAt: %v", err)
		}
		if string(buffer[:read]) != "classified" {
			t.Errorf("restored content = %q", buffer[:read])
		}
	})

	if _, err := execute(t, "snapshot", "export", "--recipient", "age1bogus", image, snapshot+".2"); err == nil {
		t.Error("export accepted a malformed recipient")
	}
}

func TestSnapshotImportForceKeepsImageOnFailure(t *testing.T) {
	source := formattedImage(t, "64")
	exported := filepath.Join(t.TempDir(), "disk.snap")
	if _, err := execute(t, "snapshot", "export", source, exported); err != nil {
		t.Fatalf("export: %v", err)
	}
	whole, err := os.ReadFile(exported)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	truncated := filepath.Join(t.TempDir(), "truncated.snap")
	if err := os.WriteFile(truncated, whole[:len(whole)/2], 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	identity := filepath.Join(t.TempDir(), "identity.txt")
	recipient, err := execute(t, "snapshot", "keygen", identity)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	encrypted := filepath.Join(t.TempDir(), "disk.snap.age")
	if _, err := execute(t, "snapshot", "export", "--recipient", strings.TrimSpace(recipient), source, encrypted); err != nil {
		t.Fatalf("export: %v", err)
	}
	otherIdentity := filepath.Join(t.TempDir(), "other.txt")
	if _, err := execute(t, "snapshot", "keygen", otherIdentity); err != nil {
		t.Fatalf("keygen: %v", err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{name: "truncated snapshot", args: []string{"--force", truncated}},
		{name: "wrong identity", args: []string{"--force", "--identity", otherIdentity, encrypted}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			image := formattedImage(t, "8")
			populate(t, image, func(fs *blockfs.FileSystem) {
				if _, err := fs.Create("/keep", blockfs.ModeRegular|0o644); err != nil {
					t.Fatalf("Create: %v", err)
				}
			})
			before, err := os.ReadFile(image)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}

			args := append([]string{"snapshot", "import"}, test.args...)
			if _, err := execute(t, append(args, image)...); err == nil {
				t.Fatal("import succeeded")
			}
			after, err := os.ReadFile(image)
			if err != nil {
				t.Fatalf("image after failed import: %v", err)
			}
			if !bytes.Equal(after, before) {
				t.Error("failed import changed the existing image")
			}
		})
	}
}

func TestKeygenStampsIdentity(t *testing.T) {
	identity := filepath.Join(t.TempDir(), "identity.txt")
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var stdout bytes.Buffer
	if err := runKeygen(&stdout, identity, clock.Fake(created)); err != nil {
		t.Fatalf("runKeygen: %v", err)
	}

	contents, err := os.ReadFile(identity)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(contents), "# created: 2026-03-01T12:00:00Z\n") {
		t.Errorf("identity file starts %q", strings.SplitN(string(contents), "\n", 2)[0])
	}
	publicKey := strings.TrimSpace(stdout.String())
	if !strings.Contains(string(contents), "# public key: "+publicKey+"\n") {
		t.Errorf("identity file does not record the printed key %q", publicKey)
	}

	if err := runKeygen(io.Discard, identity, clock.Fake(created)); err == nil {
		t.Error("keygen overwrote an existing identity")
	}
}

func TestSnapshotArguments(t *testing.T) {
	image := formattedImage(t, "64")
	tests := []struct {
		name string
		args []string
	}{
		{"export without output", []string{"snapshot", "export", image}},
		{"export with unknown compression", []string{"snapshot", "export", "--compression", "gzip", image, "out"}},
		{"import without image", []string{"snapshot", "import", "in"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Errorf("Execute(%v) succeeded", tt.args)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	output, err := execute(t, "ls", "--version")
	if err != nil {
		t.Fatalf("--version: %v", err)
	}
	if !strings.HasPrefix(output, "blockfs ") {
		t.Errorf("--version output = %q", output)
	}
}

func TestConfigSuppliesImage(t *testing.T) {
	image := formattedImage(t, "64")
	configPath := filepath.Join(t.TempDir(), "blockfs.yaml")
	if err := os.WriteFile(configPath, []byte("image: "+image+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	output, err := execute(t, "inspect", "--config", configPath)
	if err != nil {
		t.Fatalf("inspect --config: %v", err)
	}
	if !strings.Contains(output, image) {
		t.Errorf("inspect did not use the configured image:\n%s", output)
	}
}

func TestChildPath(t *testing.T) {
	tests := []struct{ parent, name, want string }{
		{"/", "a", "/a"},
		{"/a", "b", "/a/b"},
		{"/a/", "b", "/a/b"},
	}
	for _, tt := range tests {
		if got := childPath(tt.parent, tt.name); got != tt.want {
			t.Errorf("childPath(%q, %q) = %q, want %q", tt.parent, tt.name, got, tt.want)
		}
	}
}
