// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fuse mounts a blockfs image through the kernel's FUSE
// interface using go-fuse's node API.
//
// One node type serves files and directories alike. Nodes carry no
// engine state: each request turns the node's position in the kernel
// inode tree into an absolute path and hands it to
// [blockfs.FileSystem], which resolves it under its own lock. Kernel
// inode numbers are engine indices plus one, so the root directory is
// inode 1 as the kernel expects.
//
// Engine errors become errno values: not found is ENOENT, an existing
// name EEXIST, a full directory or image ENOSPC, content past the
// one-block limit EFBIG, bad paths and offsets EINVAL. Anything else,
// including image corruption, is EIO and logged.
//
// The image records no timestamps or ownership. Every file reports the
// mount time and the uid and gid of the mounting process.
package fuse
