// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blockstore

import (
	"errors"
	"fmt"
)

// BlockSize is the size of every block in bytes. It is a format
// constant: images written with one block size cannot be read with
// another.
const BlockSize = 4096

// ErrBlockOutOfRange is returned by [Device.Block] for an index
// outside [0, BlockCount).
var ErrBlockOutOfRange = errors.New("blockstore: block index out of range")

// Device is a fixed-size array of blocks. Device is not safe for
// concurrent mutation; blockfs serializes access above it.
type Device struct {
	// fd is the image file descriptor, or -1 for memory devices.
	fd int

	// data is the whole image. For file devices it is a MAP_SHARED
	// read-write mapping of the file.
	data []byte

	blockCount int
	path       string

	// fresh is true when Open created or zero-extended the image.
	fresh bool
}

// NewMemory returns a zero-filled device with blockCount blocks that
// lives only in memory.
func NewMemory(blockCount int) (*Device, error) {
	if blockCount <= 0 {
		return nil, fmt.Errorf("block count must be positive, got %d", blockCount)
	}
	return &Device{
		fd:         -1,
		data:       make([]byte, blockCount*BlockSize),
		blockCount: blockCount,
		fresh:      true,
	}, nil
}

// Block returns the contents of block index. The returned slice has
// length and capacity BlockSize and aliases the device, so writes to
// it modify the image.
func (d *Device) Block(index int) ([]byte, error) {
	if index < 0 || index >= d.blockCount {
		return nil, fmt.Errorf("%w: %d (device has %d blocks)", ErrBlockOutOfRange, index, d.blockCount)
	}
	start := index * BlockSize
	end := start + BlockSize
	return d.data[start:end:end], nil
}

// BlockSize returns [BlockSize]. It exists so that consumers can
// depend on an interface rather than on this package's constant.
func (d *Device) BlockSize() int {
	return BlockSize
}

// BlockCount returns the number of blocks on the device.
func (d *Device) BlockCount() int {
	return d.blockCount
}

// Size returns the device size in bytes.
func (d *Device) Size() int64 {
	return int64(len(d.data))
}

// Path returns the image path, or "" for memory devices.
func (d *Device) Path() string {
	return d.path
}

// Fresh reports whether the device was created empty by this process
// (a memory device, or an image file that Open had to create). Fresh
// devices need formatting before blockfs can use them.
func (d *Device) Fresh() bool {
	return d.fresh
}

// Bytes returns the whole image. The slice aliases the device.
func (d *Device) Bytes() []byte {
	return d.data
}
