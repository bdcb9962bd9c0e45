// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package blockfs is a small on-disk filesystem engine: it owns the
// layout of a fixed-size block device, allocates blocks and inode
// slots from bitmaps, stores directories as fixed-capacity entry
// tables, and resolves slash-separated paths by descending through
// them.
//
// # On-disk layout
//
// Blocks 0 through 3 are reserved:
//
//   - 0: block bitmap at byte 0 (one bit per block), inode bitmap at
//     byte BlockCount/8 (one bit per inode slot). Bits are LSB-first.
//   - 1: inode table. Each inode is 16 bytes: reference count, mode,
//     size, data block, as little-endian int32s.
//   - 2: superblock. A CBOR record holding the geometry and its BLAKE3
//     checksum. Images from before the superblock leave this zero and
//     are still accepted.
//   - 3: the root directory's entry table.
//
// A directory block holds [EntriesPerDirectory] 16-byte entry slots
// (a 12-byte NUL-terminated name and a little-endian int32 inode),
// with the slot before the first one reused for the occupancy bit
// vector. Bit j of that vector covers slot j+1. Slot 1 is the "."
// entry pointing at the directory itself; there is no ".." entry, so
// paths never ascend.
//
// Every file owns exactly one data block, so file content is capped
// at one block. Reads and writes past the block are clipped and
// report a short count rather than failing.
//
// # Names
//
// Names are stored in at most [MaxNameLength] bytes. Longer names are
// truncated on create and rename, and lookups truncate the component
// the same way, so a long name resolves to the entry it was stored
// under. Lookups compare whole stored names: "fo" does not match
// "foobar".
//
// # Concurrency
//
// A [FileSystem] serializes every operation behind one mutex. The
// engine never blocks on anything other than the lock and the
// device's own memory access.
//
// # Errors
//
// Operations fail with errors wrapping one of the sentinels in
// errors.go ([ErrNotFound], [ErrAlreadyExists], [ErrCapacityExceeded],
// [ErrOutOfRange], [ErrInvalidPath], and the rest). The FUSE adapter
// in lib/blockfs/fuse maps them to errno values.
package blockfs
