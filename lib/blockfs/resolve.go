// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blockfs

import (
	"fmt"
	"strings"
)

// resolve returns the entry path names, descending from the root
// directory one component at a time.
func (fs *FileSystem) resolve(path string) (Entry, error) {
	if err := validatePath(path); err != nil {
		return Entry{}, err
	}
	return fs.resolveIn(RootBlock, path)
}

// resolveIn looks up the first component of cursor in the directory
// stored in block and recurses into that entry's block while a
// separator follows. The remainder keeps its leading separator, so
// "/" at any level names the current directory through its "." entry.
func (fs *FileSystem) resolveIn(block BlockIndex, cursor string) (Entry, error) {
	directory, err := fs.directory(block)
	if err != nil {
		return Entry{}, err
	}

	if cursor == "/" {
		cursor = selfName
	}
	cursor = strings.TrimPrefix(cursor, "/")

	end := strings.IndexByte(cursor, '/')
	if end < 0 {
		end = len(cursor)
	}
	component, remainder := cursor[:end], cursor[end:]

	entry, ok := directory.lookup(component)
	if !ok {
		return Entry{}, ErrNotFound
	}
	if remainder == "" {
		return entry, nil
	}

	inode, err := fs.inodes.reference(entry.Inode)
	if err != nil {
		return Entry{}, err
	}
	if !inode.isDirectory() {
		return Entry{}, ErrNotFound
	}
	return fs.resolveIn(inode.block(), remainder)
}

// directory opens the entry table stored in block.
func (fs *FileSystem) directory(block BlockIndex) (*Directory, error) {
	data, err := fs.device.Block(int(block))
	if err != nil {
		return nil, fmt.Errorf("%w: directory block %d: %v", ErrOutOfRange, block, err)
	}
	return openDirectory(data), nil
}

// validatePath rejects paths the resolver cannot start from.
func validatePath(path string) error {
	switch {
	case path == "":
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	case path[0] != '/':
		return fmt.Errorf("%w: %q is not absolute", ErrInvalidPath, path)
	case strings.IndexByte(path, 0) >= 0:
		return fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidPath, path)
	}
	return nil
}

// splitPath separates path into its parent directory and final name.
// The final name must be non-empty and not "." or "..".
func splitPath(path string) (parent, name string, err error) {
	if err := validatePath(path); err != nil {
		return "", "", err
	}
	separator := strings.LastIndexByte(path, '/')
	parent, name = path[:separator], path[separator+1:]
	if parent == "" {
		parent = "/"
	}
	switch name {
	case "":
		return "", "", fmt.Errorf("%w: %q has no final name", ErrInvalidPath, path)
	case ".", "..":
		return "", "", fmt.Errorf("%w: %q ends in a reserved name", ErrInvalidPath, path)
	}
	return parent, name, nil
}
