// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/bureau-foundation/blockfs/lib/blockfs"
)

// renameNoReplace is the Linux RENAME_NOREPLACE flag as the FUSE
// protocol carries it.
const renameNoReplace = 1

// node is any file or directory. It holds no engine state: every
// request resolves the node's current path and lets the engine look
// it up, so renames only need the kernel-side tree to move.
type node struct {
	gofuse.Inode
	mount *mountState
}

var _ gofuse.InodeEmbedder = (*node)(nil)
var _ gofuse.NodeLookuper = (*node)(nil)
var _ gofuse.NodeGetattrer = (*node)(nil)
var _ gofuse.NodeSetattrer = (*node)(nil)
var _ gofuse.NodeReaddirer = (*node)(nil)
var _ gofuse.NodeMkdirer = (*node)(nil)
var _ gofuse.NodeMknoder = (*node)(nil)
var _ gofuse.NodeCreater = (*node)(nil)
var _ gofuse.NodeUnlinker = (*node)(nil)
var _ gofuse.NodeRmdirer = (*node)(nil)
var _ gofuse.NodeRenamer = (*node)(nil)
var _ gofuse.NodeOpener = (*node)(nil)
var _ gofuse.NodeReader = (*node)(nil)
var _ gofuse.NodeWriter = (*node)(nil)
var _ gofuse.NodeFsyncer = (*node)(nil)
var _ gofuse.NodeAccesser = (*node)(nil)
var _ gofuse.NodeStatfser = (*node)(nil)

// path returns the absolute engine path of n.
func (n *node) path() string {
	return "/" + n.Path(n.Root())
}

// childPath returns the engine path of name inside n.
func (n *node) childPath(name string) string {
	parent := n.path()
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// newChild returns the kernel inode for an engine inode, reusing the
// existing one when the kernel already knows it.
func (n *node) newChild(ctx context.Context, attributes blockfs.Attributes) *gofuse.Inode {
	return n.NewInode(ctx, &node{mount: n.mount}, gofuse.StableAttr{
		Mode: attributes.Mode & syscall.S_IFMT,
		Ino:  kernelIno(attributes.Inode),
	})
}

// entry stats path and returns its kernel inode, filling out.
func (n *node) entry(ctx context.Context, operation, path string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	attributes, err := n.mount.fs.Stat(path)
	if err != nil {
		return nil, n.mount.errno(operation, path, err)
	}
	n.mount.fillAttr(attributes, &out.Attr)
	return n.newChild(ctx, attributes), 0
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	return n.entry(ctx, "lookup", n.childPath(name), out)
}

func (n *node) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	path := n.path()
	attributes, err := n.mount.fs.Stat(path)
	if err != nil {
		return n.mount.errno("getattr", path, err)
	}
	n.mount.fillAttr(attributes, &out.Attr)
	return 0
}

// Setattr applies size and mode changes. Ownership and timestamps are
// not stored, so those requests succeed without effect.
func (n *node) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	path := n.path()
	if size, ok := in.GetSize(); ok {
		if err := n.mount.fs.Truncate(path, int64(size)); err != nil {
			return n.mount.contentErrno("truncate", path, err)
		}
	}
	if mode, ok := in.GetMode(); ok {
		if err := n.mount.fs.Chmod(path, mode); err != nil {
			return n.mount.errno("chmod", path, err)
		}
	}
	return n.Getattr(ctx, f, out)
}

// Readdir lists the members of a directory. The self entry is left
// out; the kernel supplies "." and "..".
func (n *node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	path := n.path()
	listing, err := n.mount.fs.List(path)
	if err != nil {
		return nil, n.mount.errno("readdir", path, err)
	}

	var entries []fuse.DirEntry
	for _, entry := range listing.Entries() {
		if entry.Slot == 1 {
			continue
		}
		attributes, err := n.mount.fs.Attributes(entry.Inode)
		if err != nil {
			n.mount.logger.Warn("directory entry names an unusable inode",
				"directory", path,
				"name", entry.Name,
				"inode", entry.Inode,
				"error", err,
			)
			continue
		}
		entries = append(entries, fuse.DirEntry{
			Name: entry.Name,
			Ino:  kernelIno(entry.Inode),
			Mode: attributes.Mode,
		})
	}
	return &sliceDirStream{entries: entries}, 0
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	path := n.childPath(name)
	if _, err := n.mount.fs.Create(path, blockfs.ModeDirectory|mode&blockfs.ModePermissionMask); err != nil {
		return nil, n.mount.errno("mkdir", path, err)
	}
	return n.entry(ctx, "mkdir", path, out)
}

// Mknod creates regular files only. Devices, FIFOs and sockets have
// nowhere to live in a one-block file.
func (n *node) Mknod(ctx context.Context, name string, mode uint32, dev uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	path := n.childPath(name)
	if kind := mode & syscall.S_IFMT; kind != 0 && kind != syscall.S_IFREG {
		return nil, syscall.EPERM
	}
	if _, err := n.mount.fs.Create(path, blockfs.ModeRegular|mode&blockfs.ModePermissionMask); err != nil {
		return nil, n.mount.errno("mknod", path, err)
	}
	return n.entry(ctx, "mknod", path, out)
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	path := n.childPath(name)
	if _, err := n.mount.fs.Create(path, blockfs.ModeRegular|mode&blockfs.ModePermissionMask); err != nil {
		return nil, nil, 0, n.mount.errno("create", path, err)
	}
	child, errno := n.entry(ctx, "create", path, out)
	return child, nil, 0, errno
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	path := n.childPath(name)
	attributes, err := n.mount.fs.Stat(path)
	if err != nil {
		return n.mount.errno("unlink", path, err)
	}
	if attributes.IsDirectory() {
		return syscall.EISDIR
	}
	if err := n.mount.fs.Unlink(path); err != nil {
		return n.mount.errno("unlink", path, err)
	}
	return 0
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	path := n.childPath(name)
	if err := n.mount.fs.RemoveDirectory(path); err != nil {
		return n.mount.errno("rmdir", path, err)
	}
	return 0
}

// Rename supports RENAME_NOREPLACE. Exchanging two entries is not
// supported.
func (n *node) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	from := n.childPath(name)
	to := "/" + newParent.EmbeddedInode().Path(n.Root())
	if to == "/" {
		to += newName
	} else {
		to += "/" + newName
	}

	var err error
	switch flags {
	case 0:
		err = n.mount.fs.Rename(from, to)
	case renameNoReplace:
		err = n.mount.fs.RenameNoReplace(from, to)
	default:
		return syscall.EINVAL
	}
	if err != nil {
		return n.mount.errno("rename", from, err)
	}
	return 0
}

// Open checks that the node still exists. Reads and writes go
// straight to the engine, so no file handle is needed.
func (n *node) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	path := n.path()
	attributes, err := n.mount.fs.Stat(path)
	if err != nil {
		return nil, 0, n.mount.errno("open", path, err)
	}
	if attributes.IsDirectory() && flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EISDIR
	}
	if flags&syscall.O_TRUNC != 0 {
		if err := n.mount.fs.Truncate(path, 0); err != nil {
			return nil, 0, n.mount.contentErrno("open", path, err)
		}
	}
	return nil, 0, 0
}

func (n *node) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	path := n.path()
	read, err := n.mount.fs.ReadAt(path, dest, off)
	if err != nil {
		return nil, n.mount.errno("read", path, err)
	}
	return fuse.ReadResultData(dest[:read]), 0
}

// Write stores data at off. A write that fits only partly reports the
// short count; one that starts at or past the block end fails with
// EFBIG.
func (n *node) Write(ctx context.Context, f gofuse.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	path := n.path()
	written, err := n.mount.fs.WriteAt(path, data, off)
	if err != nil {
		return 0, n.mount.contentErrno("write", path, err)
	}
	if written == 0 && len(data) > 0 {
		return 0, syscall.EFBIG
	}
	return uint32(written), 0
}

func (n *node) Fsync(ctx context.Context, f gofuse.FileHandle, flags uint32) syscall.Errno {
	if n.mount.syncer == nil {
		return 0
	}
	if err := n.mount.syncer.Sync(); err != nil {
		return n.mount.errno("fsync", n.path(), err)
	}
	return 0
}

// Access reports whether the node exists. Permission bits are not
// enforced.
func (n *node) Access(ctx context.Context, mask uint32) syscall.Errno {
	path := n.path()
	if _, err := n.mount.fs.Inode(path); err != nil {
		return n.mount.errno("access", path, err)
	}
	return 0
}

func (n *node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	usage := n.mount.fs.Usage()
	out.Bsize = uint32(usage.BlockSize)
	out.Frsize = uint32(usage.BlockSize)
	out.Blocks = uint64(usage.TotalBlocks)
	out.Bfree = uint64(usage.FreeBlocks())
	out.Bavail = uint64(usage.FreeBlocks())
	out.Files = uint64(usage.TotalInodes)
	out.Ffree = uint64(usage.FreeInodes())
	out.NameLen = blockfs.MaxNameLength
	return 0
}

// sliceDirStream implements fs.DirStream from a slice of entries.
type sliceDirStream struct {
	entries []fuse.DirEntry
	index   int
}

func (s *sliceDirStream) HasNext() bool {
	return s.index < len(s.entries)
}

func (s *sliceDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if s.index >= len(s.entries) {
		return fuse.DirEntry{}, syscall.EINVAL
	}
	entry := s.entries[s.index]
	s.index++
	return entry, 0
}

func (s *sliceDirStream) Close() {}
