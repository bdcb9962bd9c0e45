// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blockfs

import (
	"encoding/binary"
	"fmt"
)

// Inode record layout within its 16 bytes, little-endian int32s.
const (
	inodeRefsOffset  = 0
	inodeModeOffset  = 4
	inodeSizeOffset  = 8
	inodeBlockOffset = 12
)

// inodeTable is the fixed array of inode records in InodeTableBlock.
type inodeTable struct {
	block    []byte
	capacity int
}

// reference returns a mutable handle on inode index. Indices outside
// the table fail with ErrOutOfRange.
func (t inodeTable) reference(index InodeIndex) (inodeHandle, error) {
	if index < 0 || int(index) >= t.capacity {
		return inodeHandle{}, fmt.Errorf("inode %d: %w (table holds %d)", index, ErrOutOfRange, t.capacity)
	}
	start := int(index) * inodeRecordSize
	return inodeHandle{
		index:  index,
		record: t.block[start : start+inodeRecordSize],
	}, nil
}

// inodeHandle reads and writes one record in place.
type inodeHandle struct {
	index  InodeIndex
	record []byte
}

func (h inodeHandle) field(offset int) int32 {
	return int32(binary.LittleEndian.Uint32(h.record[offset:]))
}

func (h inodeHandle) setField(offset int, value int32) {
	binary.LittleEndian.PutUint32(h.record[offset:], uint32(value))
}

func (h inodeHandle) refs() int32 { return h.field(inodeRefsOffset) }
func (h inodeHandle) mode() uint32 { return uint32(h.field(inodeModeOffset)) }
func (h inodeHandle) size() int { return int(h.field(inodeSizeOffset)) }
func (h inodeHandle) block() BlockIndex { return BlockIndex(h.field(inodeBlockOffset)) }

func (h inodeHandle) setMode(mode uint32) { h.setField(inodeModeOffset, int32(mode)) }
func (h inodeHandle) setSize(size int) { h.setField(inodeSizeOffset, int32(size)) }

func (h inodeHandle) isDirectory() bool {
	return IsDirectory(h.mode())
}

// initialize writes a fresh record: one reference, empty, owning block.
func (h inodeHandle) initialize(mode uint32, block BlockIndex) {
	h.setField(inodeRefsOffset, 1)
	h.setMode(mode)
	h.setSize(0)
	h.setField(inodeBlockOffset, int32(block))
}

// Attributes is the stat-level view of an inode.
type Attributes struct {
	// Inode is the inode index, stable for the life of the file.
	Inode InodeIndex

	// Mode is the type and permission bits.
	Mode uint32

	// Size is the content length in bytes, at most one block.
	Size int64

	// Links is the stored reference count.
	Links uint32

	// UID and GID are the effective ids of the process running the
	// engine. Ownership is not stored on disk.
	UID uint32
	GID uint32
}

// IsDirectory reports whether the attributes describe a directory.
func (a Attributes) IsDirectory() bool {
	return IsDirectory(a.Mode)
}
