// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blockfs

import "fmt"

// Reserved block indices. Blocks 0 through 3 are marked used at
// format time and never released.
const (
	// BitmapBlock holds the block bitmap at byte 0 followed by the
	// inode bitmap at byte BlockCount/8.
	BitmapBlock = 0

	// InodeTableBlock holds the inode records.
	InodeTableBlock = 1

	// SuperblockBlock holds the CBOR-encoded superblock. Images
	// written before the superblock existed leave it zero.
	SuperblockBlock = 2

	// RootBlock holds the root directory's entry table.
	RootBlock = 3

	reservedBlocks = 4
)

const (
	// EntriesPerDirectory is the number of entry slots in a directory,
	// including the self entry.
	EntriesPerDirectory = 100

	// MaxNameLength is the longest stored name. Longer names are
	// truncated.
	MaxNameLength = 11

	inodeRecordSize = 16
	entrySize       = 16
	entryNameSize   = MaxNameLength + 1

	// minBlockSize fits a directory: occupancy vector plus 100 slots.
	minBlockSize = (EntriesPerDirectory + 1) * entrySize
)

// Mode bits. The type bits match the POSIX S_IF* values so modes
// pass through to the kernel unchanged.
const (
	ModeTypeMask       uint32 = 0o170000
	ModeDirectory      uint32 = 0o040000
	ModeRegular        uint32 = 0o100000
	ModePermissionMask uint32 = 0o7777
)

// IsDirectory reports whether mode has the directory type bits.
func IsDirectory(mode uint32) bool {
	return mode&ModeTypeMask == ModeDirectory
}

// InodeIndex identifies an inode by its slot in the inode table.
type InodeIndex int32

// BlockIndex identifies a block on the device.
type BlockIndex int32

// BlockDevice is the block store the engine runs on. Blocks returned
// by Block must alias the device: the engine mutates them in place.
type BlockDevice interface {
	Block(index int) ([]byte, error)
	BlockSize() int
	BlockCount() int
}

// layout is the geometry derived from a device.
type layout struct {
	blockSize     int
	blockCount    int
	inodeCapacity int
}

func newLayout(device BlockDevice) (layout, error) {
	geometry := layout{
		blockSize:  device.BlockSize(),
		blockCount: device.BlockCount(),
	}
	geometry.inodeCapacity = geometry.blockSize / inodeRecordSize

	if geometry.blockSize < minBlockSize {
		return layout{}, fmt.Errorf("block size %d is below the %d bytes a directory needs",
			geometry.blockSize, minBlockSize)
	}
	if geometry.blockCount <= reservedBlocks || geometry.blockCount%8 != 0 {
		return layout{}, fmt.Errorf("block count %d must be a multiple of 8 above %d",
			geometry.blockCount, reservedBlocks)
	}
	if geometry.bitmapBytes() > geometry.blockSize {
		return layout{}, fmt.Errorf("block count %d needs %d bitmap bytes, more than one %d-byte block",
			geometry.blockCount, geometry.bitmapBytes(), geometry.blockSize)
	}
	return geometry, nil
}

// blockBitmapBytes is the size of the block bitmap region.
func (l layout) blockBitmapBytes() int {
	return l.blockCount / 8
}

// bitmapBytes is the size of both bitmaps together in block 0.
func (l layout) bitmapBytes() int {
	return l.blockBitmapBytes() + (l.inodeCapacity+7)/8
}
