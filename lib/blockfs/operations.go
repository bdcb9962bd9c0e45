// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blockfs

import (
	"errors"
	"fmt"
)

// Create makes a file or directory at path with mode and returns its
// inode. Mode without type bits creates a regular file. Directories
// get a self entry. Creating "/" builds the root in RootBlock with no
// parent entry.
//
// The parent must exist and be a directory (ErrNotFound). A path that
// already resolves fails with ErrAlreadyExists. When no inode, block
// or parent slot is free, Create fails with ErrCapacityExceeded and
// leaves the image unchanged.
func (fs *FileSystem) Create(path string, mode uint32) (InodeIndex, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if mode&ModeTypeMask == 0 {
		mode |= ModeRegular
	}

	if _, err := fs.resolve(path); err == nil {
		return 0, fmt.Errorf("creating %s: %w", path, ErrAlreadyExists)
	} else if !errors.Is(err, ErrNotFound) {
		return 0, fmt.Errorf("creating %s: %w", path, err)
	}

	if path == "/" {
		return fs.createRoot(mode)
	}

	parentPath, name, err := splitPath(path)
	if err != nil {
		return 0, err
	}
	parent, _, err := fs.parentDirectory(parentPath)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", path, err)
	}
	if !parent.hasFreeSlot() {
		return 0, fmt.Errorf("creating %s: %w (parent directory is full)", path, ErrCapacityExceeded)
	}

	index, err := fs.allocator.firstFreeInode()
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", path, err)
	}
	block, err := fs.allocator.firstFreeBlock()
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", path,
			errors.Join(err, fs.allocator.release(kindInode, int(index))))
	}
	// rollback returns the claimed inode and block to the allocator.
	rollback := func(cause error) error {
		return fmt.Errorf("creating %s: %w", path, errors.Join(cause,
			fs.allocator.release(kindBlock, int(block)),
			fs.allocator.release(kindInode, int(index)),
		))
	}
	data, err := fs.device.Block(int(block))
	if err != nil {
		return 0, rollback(err)
	}
	inode, err := fs.inodes.reference(index)
	if err != nil {
		return 0, rollback(err)
	}
	clear(data)
	inode.initialize(mode, block)
	if IsDirectory(mode) {
		openDirectory(data).installSelf(index)
	}

	slot, err := parent.insert(name, index)
	if err != nil {
		return 0, rollback(err)
	}

	fs.logger.Debug("created",
		"path", path,
		"mode", fmt.Sprintf("%#o", mode),
		"inode", index,
		"block", block,
		"slot", slot,
	)
	return index, nil
}

func (fs *FileSystem) createRoot(mode uint32) (InodeIndex, error) {
	mode = mode&^ModeTypeMask | ModeDirectory

	index, err := fs.allocator.firstFreeInode()
	if err != nil {
		return 0, fmt.Errorf("creating /: %w", err)
	}
	inode, err := fs.inodes.reference(index)
	if err != nil {
		return 0, err
	}
	inode.initialize(mode, RootBlock)

	root, err := fs.directory(RootBlock)
	if err != nil {
		return 0, err
	}
	clear(root.block)
	root.installSelf(index)

	fs.logger.Debug("created root", "inode", index, "mode", fmt.Sprintf("%#o", mode))
	return index, nil
}

// Inode returns the inode index path resolves to.
func (fs *FileSystem) Inode(path string) (InodeIndex, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entry, err := fs.resolve(path)
	if err != nil {
		return 0, fmt.Errorf("resolving %s: %w", path, err)
	}
	return entry.Inode, nil
}

// Resolve returns the directory entry path resolves to. For "/" this
// is the root's self entry.
func (fs *FileSystem) Resolve(path string) (Entry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entry, err := fs.resolve(path)
	if err != nil {
		return Entry{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	return entry, nil
}

// Attributes returns the attributes of inode index. Indices outside
// the table fail with ErrOutOfRange; unallocated slots with
// ErrNotFound.
func (fs *FileSystem) Attributes(index InodeIndex) (Attributes, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.attributes(index)
}

func (fs *FileSystem) attributes(index InodeIndex) (Attributes, error) {
	inode, err := fs.inodes.reference(index)
	if err != nil {
		return Attributes{}, err
	}
	if !fs.allocator.allocated(kindInode, int(index)) {
		return Attributes{}, fmt.Errorf("inode %d: %w (not allocated)", index, ErrNotFound)
	}
	return Attributes{
		Inode: index,
		Mode:  inode.mode(),
		Size:  int64(inode.size()),
		Links: uint32(inode.refs()),
		UID:   fs.uid,
		GID:   fs.gid,
	}, nil
}

// Stat resolves path and returns its attributes.
func (fs *FileSystem) Stat(path string) (Attributes, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entry, err := fs.resolve(path)
	if err != nil {
		return Attributes{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	return fs.attributes(entry.Inode)
}

// List returns the entry table of the directory at path. The table is
// a copy taken under the engine lock, so the caller may enumerate it
// while other operations run. A path that is not a directory fails
// with ErrNotFound.
func (fs *FileSystem) List(path string) (*Directory, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	directory, _, err := fs.parentDirectory(path)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}
	return openDirectory(append([]byte(nil), directory.block...)), nil
}

// DataBlock returns the block holding the content of path. The slice
// aliases the image; callers must not retain it across operations
// that might release the file.
func (fs *FileSystem) DataBlock(path string) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	inode, err := fs.resolveInode(path)
	if err != nil {
		return nil, err
	}
	return fs.device.Block(int(inode.block()))
}

// Rename moves the entry at from to to. The inode keeps its index;
// only the name and containing directory change. An existing file or
// empty directory at to is replaced and released.
func (fs *FileSystem) Rename(from, to string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.rename(from, to, false)
}

// RenameNoReplace is Rename that fails with ErrAlreadyExists instead
// of replacing an existing destination.
func (fs *FileSystem) RenameNoReplace(from, to string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.rename(from, to, true)
}

func (fs *FileSystem) rename(from, to string, noReplace bool) error {
	fromParentPath, _, err := splitPath(from)
	if err != nil {
		return err
	}
	toParentPath, toName, err := splitPath(to)
	if err != nil {
		return err
	}

	source, err := fs.resolve(from)
	if err != nil {
		return fmt.Errorf("renaming %s: %w", from, err)
	}
	sourceInode, err := fs.inodes.reference(source.Inode)
	if err != nil {
		return err
	}
	if sourceInode.isDirectory() {
		beneath, err := fs.pathPassesThrough(toParentPath, source.Inode)
		if err != nil {
			return fmt.Errorf("renaming %s to %s: %w", from, to, err)
		}
		if beneath {
			return fmt.Errorf("%w: cannot move %s beneath itself", ErrInvalidPath, from)
		}
	}

	fromParent, fromBlock, err := fs.parentDirectory(fromParentPath)
	if err != nil {
		return fmt.Errorf("renaming %s: %w", from, err)
	}
	toParent, toBlock, err := fs.parentDirectory(toParentPath)
	if err != nil {
		return fmt.Errorf("renaming %s to %s: %w", from, to, err)
	}

	destination, err := fs.resolve(to)
	switch {
	case err == nil:
		if noReplace {
			return fmt.Errorf("renaming %s: %s %w", from, to, ErrAlreadyExists)
		}
		if destination.Inode == source.Inode {
			return nil
		}
		if err := fs.checkReplaceable(sourceInode, destination); err != nil {
			return fmt.Errorf("renaming %s over %s: %w", from, to, err)
		}
		// The destination's slot is freed first, so the insert below
		// cannot run out of room.
		toParent.release(destination.Slot)
		if err := fs.releaseInode(destination.Inode); err != nil {
			return err
		}
	case !errors.Is(err, ErrNotFound):
		return fmt.Errorf("renaming %s to %s: %w", from, to, err)
	}

	if fromBlock == toBlock {
		fromParent.rename(source.Slot, toName)
		fs.logger.Debug("renamed in place", "from", from, "to", to, "slot", source.Slot)
		return nil
	}

	slot, err := toParent.insert(toName, source.Inode)
	if err != nil {
		return fmt.Errorf("renaming %s to %s: %w", from, to, err)
	}
	fromParent.release(source.Slot)
	fs.logger.Debug("renamed",
		"from", from,
		"to", to,
		"inode", source.Inode,
		"slot", slot,
	)
	return nil
}

// pathPassesThrough reports whether any directory named along path,
// the root included, is inode index. Each prefix is resolved the way
// lookups are, so "." components and truncated names are followed to
// the directories they alias.
func (fs *FileSystem) pathPassesThrough(path string, index InodeIndex) (bool, error) {
	for end := 1; end <= len(path); end++ {
		if end < len(path) && path[end] != '/' {
			continue
		}
		entry, err := fs.resolve(path[:end])
		if err != nil {
			return false, err
		}
		if entry.Inode == index {
			return true, nil
		}
	}
	return false, nil
}

// checkReplaceable enforces rename(2) type rules for replacing
// destination with source.
func (fs *FileSystem) checkReplaceable(source inodeHandle, destination Entry) error {
	target, err := fs.inodes.reference(destination.Inode)
	if err != nil {
		return err
	}
	if !target.isDirectory() {
		if source.isDirectory() {
			return ErrNotDirectory
		}
		return nil
	}
	if !source.isDirectory() {
		return ErrIsDirectory
	}
	directory, err := fs.directory(target.block())
	if err != nil {
		return err
	}
	if directory.Len() > 1 {
		return ErrNotEmpty
	}
	return nil
}

// Unlink removes the entry at path from its parent and releases the
// inode and its data block.
func (fs *FileSystem) Unlink(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.unlink(path)
}

func (fs *FileSystem) unlink(path string) error {
	if path == "/" {
		return fmt.Errorf("%w: cannot unlink the root directory", ErrInvalidPath)
	}
	parentPath, name, err := splitPath(path)
	if err != nil {
		return err
	}
	parent, _, err := fs.parentDirectory(parentPath)
	if err != nil {
		return fmt.Errorf("unlinking %s: %w", path, err)
	}
	index, err := parent.remove(name)
	if err != nil {
		return fmt.Errorf("unlinking %s: %w", path, err)
	}
	if err := fs.releaseInode(index); err != nil {
		return fmt.Errorf("unlinking %s: %w", path, err)
	}
	fs.logger.Debug("unlinked", "path", path, "inode", index)
	return nil
}

// RemoveDirectory unlinks the directory at path if it holds nothing
// but its self entry.
func (fs *FileSystem) RemoveDirectory(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if path == "/" {
		return fmt.Errorf("%w: cannot remove the root directory", ErrInvalidPath)
	}
	inode, err := fs.resolveInode(path)
	if err != nil {
		return err
	}
	if !inode.isDirectory() {
		return fmt.Errorf("removing %s: %w", path, ErrNotDirectory)
	}
	directory, err := fs.directory(inode.block())
	if err != nil {
		return err
	}
	if directory.Len() > 1 {
		return fmt.Errorf("removing %s: %w", path, ErrNotEmpty)
	}
	return fs.unlink(path)
}

// Chmod replaces the permission bits of path, keeping its type.
func (fs *FileSystem) Chmod(path string, mode uint32) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	inode, err := fs.resolveInode(path)
	if err != nil {
		return err
	}
	inode.setMode(inode.mode()&^ModePermissionMask | mode&ModePermissionMask)
	return nil
}

// releaseInode clears the bits of an inode and the block it owns.
// Reserved blocks are never released. A legacy file that held the
// superblock slot leaves it zeroed and reserved.
func (fs *FileSystem) releaseInode(index InodeIndex) error {
	inode, err := fs.inodes.reference(index)
	if err != nil {
		return err
	}
	switch block := inode.block(); {
	case block == SuperblockBlock:
		data, err := fs.device.Block(int(block))
		if err != nil {
			return err
		}
		clear(data)
	case int(block) >= reservedBlocks:
		if err := fs.allocator.release(kindBlock, int(block)); err != nil {
			return err
		}
	}
	return fs.allocator.release(kindInode, int(index))
}

// resolveInode resolves path to a handle on its inode.
func (fs *FileSystem) resolveInode(path string) (inodeHandle, error) {
	entry, err := fs.resolve(path)
	if err != nil {
		return inodeHandle{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	return fs.inodes.reference(entry.Inode)
}

// parentDirectory resolves path to a directory and opens its table.
// A path naming a regular file fails with ErrNotFound.
func (fs *FileSystem) parentDirectory(path string) (*Directory, BlockIndex, error) {
	inode, err := fs.resolveInode(path)
	if err != nil {
		return nil, 0, err
	}
	if !inode.isDirectory() {
		return nil, 0, fmt.Errorf("%w: %s is not a directory", ErrNotFound, path)
	}
	directory, err := fs.directory(inode.block())
	if err != nil {
		return nil, 0, err
	}
	return directory, inode.block(), nil
}
