// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blockfs

import "errors"

// Every operation fails with an error wrapping exactly one of these
// sentinels. Callers classify with errors.Is; the FUSE adapter maps
// each to an errno.
var (
	// ErrNotFound: a path or name does not resolve to an existing
	// entry, or a path component that must be a directory is not one.
	ErrNotFound = errors.New("blockfs: not found")

	// ErrAlreadyExists: creation of a path that already resolves.
	ErrAlreadyExists = errors.New("blockfs: already exists")

	// ErrCapacityExceeded: no free block, inode slot, or directory
	// entry slot, or a size beyond one block.
	ErrCapacityExceeded = errors.New("blockfs: capacity exceeded")

	// ErrOutOfRange: an inode or block index outside table bounds, or
	// a negative offset.
	ErrOutOfRange = errors.New("blockfs: index out of range")

	// ErrInvalidPath: empty or relative path, empty or reserved final
	// component, or an operation the root does not support.
	ErrInvalidPath = errors.New("blockfs: invalid path")

	// ErrAlreadyFree: release of a block or inode whose bit is clear.
	ErrAlreadyFree = errors.New("blockfs: already free")

	// ErrNotEmpty: removal or replacement of a directory that still
	// has members.
	ErrNotEmpty = errors.New("blockfs: directory not empty")

	// ErrNotDirectory: a directory operation on a regular file.
	ErrNotDirectory = errors.New("blockfs: not a directory")

	// ErrIsDirectory: a file-content operation on a directory.
	ErrIsDirectory = errors.New("blockfs: is a directory")

	// ErrCorrupt: the image does not hold a valid blockfs layout.
	ErrCorrupt = errors.New("blockfs: corrupt image")
)
