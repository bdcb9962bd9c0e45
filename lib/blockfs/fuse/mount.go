// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/bureau-foundation/blockfs/lib/blockfs"
	"github.com/bureau-foundation/blockfs/lib/blockstore"
	"github.com/bureau-foundation/blockfs/lib/clock"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// FileSystem is the engine serving every request.
	FileSystem *blockfs.FileSystem

	// Syncer flushes the image on fsync. If nil, fsync succeeds
	// without flushing.
	Syncer blockstore.Syncer

	// AllowOther permits other users (including root) to access
	// the mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Clock provides the timestamp reported for every file. The image
	// stores no times, so all files show the mount time. If nil,
	// defaults to clock.Real().
	Clock clock.Clock

	// Logger receives diagnostic messages. If nil, errors go to
	// stderr.
	Logger *slog.Logger
}

// mountState is shared by every node of one mount.
type mountState struct {
	fs        *blockfs.FileSystem
	syncer    blockstore.Syncer
	mountedAt time.Time
	logger    *slog.Logger
}

// Mount mounts the filesystem at the configured mountpoint. The
// caller must call Unmount on the returned Server when done. The
// mountpoint directory is created if it does not exist.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.FileSystem == nil {
		return nil, fmt.Errorf("filesystem is required")
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	rootInode, err := options.FileSystem.Inode("/")
	if err != nil {
		return nil, fmt.Errorf("resolving root directory: %w", err)
	}

	state := &mountState{
		fs:        options.FileSystem,
		syncer:    options.Syncer,
		mountedAt: options.Clock.Now(),
		logger:    options.Logger,
	}
	root := &node{mount: state}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second
	negativeTimeout := 100 * time.Millisecond

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		RootStableAttr: &gofuse.StableAttr{
			Mode: syscall.S_IFDIR,
			Ino:  kernelIno(rootInode),
		},
		MountOptions: fuse.MountOptions{
			FsName:     "blockfs",
			Name:       "blockfs",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("blockfs mounted", "mountpoint", options.Mountpoint)
	return server, nil
}

// kernelIno maps an engine inode index to a kernel inode number. The
// kernel reserves 0, so the root (index 0) becomes 1.
func kernelIno(index blockfs.InodeIndex) uint64 {
	return uint64(index) + 1
}

// fillAttr copies engine attributes into a kernel attribute record.
func (m *mountState) fillAttr(attributes blockfs.Attributes, out *fuse.Attr) {
	out.Ino = kernelIno(attributes.Inode)
	out.Mode = attributes.Mode
	out.Size = uint64(attributes.Size)
	out.Nlink = attributes.Links
	out.Blksize = uint32(m.fs.BlockSize())
	out.Blocks = uint64(m.fs.BlockSize()) / 512
	out.Owner = fuse.Owner{Uid: attributes.UID, Gid: attributes.GID}
	out.SetTimes(&m.mountedAt, &m.mountedAt, &m.mountedAt)
}

// errno maps err for the kernel, logging anything that is not an
// ordinary caller error.
func (m *mountState) errno(operation, path string, err error) syscall.Errno {
	errno := toErrno(err)
	m.logResult(operation, path, err, errno)
	return errno
}

// contentErrno is errno for write and truncate.
func (m *mountState) contentErrno(operation, path string, err error) syscall.Errno {
	errno := toContentErrno(err)
	m.logResult(operation, path, err, errno)
	return errno
}

func (m *mountState) logResult(operation, path string, err error, errno syscall.Errno) {
	if errno == syscall.EIO {
		m.logger.Error("filesystem operation failed",
			"operation", operation,
			"path", path,
			"error", err,
		)
		return
	}
	m.logger.Debug("filesystem operation rejected",
		"operation", operation,
		"path", path,
		"errno", errno,
		"error", err,
	)
}
