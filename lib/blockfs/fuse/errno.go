// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"errors"
	"syscall"

	"github.com/bureau-foundation/blockfs/lib/blockfs"
)

// errnoMapping pairs engine errors with the errno the kernel sees.
// Order matters only for errors wrapping more than one sentinel.
var errnoMapping = []struct {
	err   error
	errno syscall.Errno
}{
	{blockfs.ErrNotFound, syscall.ENOENT},
	{blockfs.ErrAlreadyExists, syscall.EEXIST},
	{blockfs.ErrCapacityExceeded, syscall.ENOSPC},
	{blockfs.ErrOutOfRange, syscall.EINVAL},
	{blockfs.ErrInvalidPath, syscall.EINVAL},
	{blockfs.ErrNotEmpty, syscall.ENOTEMPTY},
	{blockfs.ErrNotDirectory, syscall.ENOTDIR},
	{blockfs.ErrIsDirectory, syscall.EISDIR},
}

// toErrno maps an engine error to an errno. Errors outside the
// engine's taxonomy, including corruption, become EIO.
func toErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	for _, mapping := range errnoMapping {
		if errors.Is(err, mapping.err) {
			return mapping.errno
		}
	}
	return syscall.EIO
}

// toContentErrno is toErrno for operations that grow file content. A
// file that cannot grow past its block is too large, not out of space.
func toContentErrno(err error) syscall.Errno {
	if errors.Is(err, blockfs.ErrCapacityExceeded) {
		return syscall.EFBIG
	}
	return toErrno(err)
}
