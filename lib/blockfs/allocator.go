// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blockfs

import (
	"fmt"

	"github.com/bureau-foundation/blockfs/lib/bitindex"
)

type allocationKind int

const (
	kindBlock allocationKind = iota
	kindInode
)

func (k allocationKind) String() string {
	if k == kindBlock {
		return "block"
	}
	return "inode"
}

// allocator hands out blocks and inode slots by first-fit scans of
// the two bitmaps in block 0.
type allocator struct {
	blocks        bitindex.Vector
	inodes        bitindex.Vector
	blockCount    int
	inodeCapacity int
}

func newAllocator(bitmapBlock []byte, geometry layout) allocator {
	split := geometry.blockBitmapBytes()
	return allocator{
		blocks:        bitindex.Vector(bitmapBlock[:split]),
		inodes:        bitindex.Vector(bitmapBlock[split:geometry.bitmapBytes()]),
		blockCount:    geometry.blockCount,
		inodeCapacity: geometry.inodeCapacity,
	}
}

// firstFreeBlock claims the lowest-numbered free block.
func (a *allocator) firstFreeBlock() (BlockIndex, error) {
	index, ok := a.blocks.FirstClear(0, a.blockCount)
	if !ok {
		return 0, fmt.Errorf("allocating block: %w (all %d blocks in use)", ErrCapacityExceeded, a.blockCount)
	}
	a.blocks.Set(index, true)
	return BlockIndex(index), nil
}

// firstFreeInode claims the lowest-numbered free inode slot.
func (a *allocator) firstFreeInode() (InodeIndex, error) {
	index, ok := a.inodes.FirstClear(0, a.inodeCapacity)
	if !ok {
		return 0, fmt.Errorf("allocating inode: %w (all %d inodes in use)", ErrCapacityExceeded, a.inodeCapacity)
	}
	a.inodes.Set(index, true)
	return InodeIndex(index), nil
}

// release clears the bit for index. Releasing a free slot fails with
// ErrAlreadyFree and changes nothing.
func (a *allocator) release(kind allocationKind, index int) error {
	vector, limit := a.vector(kind)
	if index < 0 || index >= limit {
		return fmt.Errorf("releasing %s %d: %w", kind, index, ErrOutOfRange)
	}
	if !vector.Get(index) {
		return fmt.Errorf("releasing %s %d: %w", kind, index, ErrAlreadyFree)
	}
	vector.Set(index, false)
	return nil
}

// reserve marks index used without a scan. Used at format time.
func (a *allocator) reserve(kind allocationKind, index int) {
	vector, _ := a.vector(kind)
	vector.Set(index, true)
}

func (a *allocator) allocated(kind allocationKind, index int) bool {
	vector, limit := a.vector(kind)
	return index >= 0 && index < limit && vector.Get(index)
}

func (a *allocator) used(kind allocationKind) int {
	vector, limit := a.vector(kind)
	return vector.Count(limit)
}

func (a *allocator) vector(kind allocationKind) (bitindex.Vector, int) {
	if kind == kindBlock {
		return a.blocks, a.blockCount
	}
	return a.inodes, a.inodeCapacity
}
