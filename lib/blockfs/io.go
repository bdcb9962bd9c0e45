// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blockfs

import "fmt"

// ReadAt copies file content at offset into buf and returns the byte
// count. Reads stop at the file size, so a short count at the end of
// a file is a normal result, not an error.
func (fs *FileSystem) ReadAt(path string, buf []byte, offset int64) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	inode, data, err := fs.fileContent(path, offset)
	if err != nil {
		return 0, err
	}
	size := min(int64(inode.size()), int64(len(data)))
	if offset >= size {
		return 0, nil
	}
	return copy(buf, data[offset:size]), nil
}

// WriteAt copies data into the file at offset and returns the byte
// count. Writes are clipped at the block capacity: the count is short
// when offset+len(data) passes it, and zero when offset is at or past
// it. The file size grows to cover the bytes written.
func (fs *FileSystem) WriteAt(path string, data []byte, offset int64) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	inode, block, err := fs.fileContent(path, offset)
	if err != nil {
		return 0, err
	}
	if offset >= int64(len(block)) {
		return 0, nil
	}
	written := copy(block[offset:], data)
	if end := int(offset) + written; end > inode.size() {
		inode.setSize(end)
	}
	if written < len(data) {
		fs.logger.Debug("write clipped at block capacity",
			"path", path,
			"offset", offset,
			"requested", len(data),
			"written", written,
		)
	}
	return written, nil
}

// Truncate sets the size of path. Bytes between the old and new size
// are zeroed, so a file grown by Truncate reads back zeros. Sizes
// above one block fail with ErrCapacityExceeded.
func (fs *FileSystem) Truncate(path string, size int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	inode, block, err := fs.fileContent(path, size)
	if err != nil {
		return err
	}
	if size > int64(len(block)) {
		return fmt.Errorf("truncating %s to %d bytes: %w (files hold at most %d)",
			path, size, ErrCapacityExceeded, len(block))
	}
	current := min(inode.size(), len(block))
	if int(size) < current {
		clear(block[size:current])
	} else {
		clear(block[current:size])
	}
	inode.setSize(int(size))
	return nil
}

// fileContent resolves a regular file and its data block.
func (fs *FileSystem) fileContent(path string, offset int64) (inodeHandle, []byte, error) {
	if offset < 0 {
		return inodeHandle{}, nil, fmt.Errorf("%s: negative offset %d: %w", path, offset, ErrOutOfRange)
	}
	inode, err := fs.resolveInode(path)
	if err != nil {
		return inodeHandle{}, nil, err
	}
	if inode.isDirectory() {
		return inodeHandle{}, nil, fmt.Errorf("%s: %w", path, ErrIsDirectory)
	}
	block, err := fs.device.Block(int(inode.block()))
	if err != nil {
		return inodeHandle{}, nil, fmt.Errorf("%s: %w: data block %d: %v", path, ErrCorrupt, inode.block(), err)
	}
	return inode, block, nil
}
