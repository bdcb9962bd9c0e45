// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package blockstore

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Open opens or creates the image file at path.
//
// If the file does not exist or is empty, it is created with
// blockCount blocks and reported as [Device.Fresh]. If it exists,
// blockCount may be zero to accept whatever size the image has; a
// non-zero blockCount must match the existing size. The image size
// must be a whole number of blocks.
func Open(path string, blockCount int) (*Device, error) {
	if blockCount < 0 {
		return nil, fmt.Errorf("block count must not be negative, got %d", blockCount)
	}

	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening image %s: %w", path, err)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("stating image %s: %w", path, err)
	}

	fresh := false
	switch {
	case stat.Size == 0:
		if blockCount == 0 {
			unix.Close(fd)
			return nil, fmt.Errorf("image %s is empty and no block count was given", path)
		}
		if err := unix.Ftruncate(fd, int64(blockCount)*BlockSize); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("sizing new image %s to %d blocks: %w", path, blockCount, err)
		}
		fresh = true
	case stat.Size%BlockSize != 0:
		unix.Close(fd)
		return nil, fmt.Errorf("image %s is %d bytes, not a multiple of the %d-byte block size",
			path, stat.Size, BlockSize)
	case blockCount == 0:
		blockCount = int(stat.Size / BlockSize)
	case stat.Size != int64(blockCount)*BlockSize:
		unix.Close(fd)
		return nil, fmt.Errorf("image %s has %d blocks but %d were requested",
			path, stat.Size/BlockSize, blockCount)
	}

	data, err := unix.Mmap(fd, 0, blockCount*BlockSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("memory-mapping image %s: %w", path, err)
	}

	return &Device{
		fd:         fd,
		data:       data,
		blockCount: blockCount,
		path:       path,
		fresh:      fresh,
	}, nil
}

// Sync flushes modified pages of the mapping to the image file. It is
// a no-op for memory devices.
func (d *Device) Sync() error {
	if d.fd < 0 {
		return nil
	}
	if err := unix.Msync(d.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("syncing image %s: %w", d.path, err)
	}
	return nil
}

// Close syncs and unmaps the image and closes the file descriptor.
// The device must not be used afterwards.
func (d *Device) Close() error {
	if d.fd < 0 {
		d.data = nil
		return nil
	}

	firstErr := d.Sync()
	if err := unix.Munmap(d.data); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("unmapping image %s: %w", d.path, err)
	}
	if err := unix.Close(d.fd); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing image %s: %w", d.path, err)
	}
	d.data = nil
	d.fd = -1
	return firstErr
}
