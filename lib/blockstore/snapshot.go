// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blockstore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the frame format of a snapshot stream. Import
// recognizes the format from the frame magic, so the choice only
// matters on export.
type Compression uint8

const (
	// CompressionZstd writes a zstd frame. Slower to produce than LZ4
	// but much smaller for sparse images.
	CompressionZstd Compression = iota

	// CompressionLZ4 writes an LZ4 frame.
	CompressionLZ4
)

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// String returns the name ParseCompression accepts.
func (c Compression) String() string {
	switch c {
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses a compression name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown snapshot compression %q (want zstd or lz4)", name)
	}
}

// Export writes the full image of device to w as a single compressed
// frame.
func Export(w io.Writer, device *Device, compression Compression) error {
	var encoder io.WriteCloser
	switch compression {
	case CompressionZstd:
		zstdEncoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return fmt.Errorf("creating zstd encoder: %w", err)
		}
		encoder = zstdEncoder
	case CompressionLZ4:
		lz4Encoder := lz4.NewWriter(w)
		if err := lz4Encoder.Apply(lz4.CompressionLevelOption(lz4.Level5)); err != nil {
			return fmt.Errorf("configuring lz4 encoder: %w", err)
		}
		encoder = lz4Encoder
	default:
		return fmt.Errorf("unsupported snapshot compression %s", compression)
	}

	if _, err := io.Copy(encoder, bytes.NewReader(device.Bytes())); err != nil {
		encoder.Close()
		return fmt.Errorf("compressing image: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("finishing snapshot: %w", err)
	}
	return nil
}

// Import decompresses a snapshot produced by [Export] into a new
// image file at path and returns its block count. Import refuses to
// replace an existing file unless overwrite is set. The snapshot is
// restored into a temporary file beside path and moved into place
// only once it decompresses completely, so a truncated, corrupt or
// partial-block snapshot leaves any existing image untouched.
func Import(r io.Reader, path string, overwrite bool) (int, error) {
	if !overwrite {
		if _, err := os.Lstat(path); err == nil {
			return 0, existingImageError(path)
		}
	}

	decoder, compression, err := openSnapshot(r)
	if err != nil {
		return 0, err
	}
	defer decoder.Close()

	temp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".import-*")
	if err != nil {
		return 0, fmt.Errorf("creating staging file for %s: %w", path, err)
	}
	staged := temp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(staged)
		}
	}()

	written, err := io.Copy(temp, decoder)
	if err == nil && written%BlockSize != 0 {
		err = fmt.Errorf("snapshot holds %d bytes, not a multiple of the %d-byte block size", written, BlockSize)
	}
	if err == nil && written == 0 {
		err = fmt.Errorf("snapshot is empty")
	}
	if err == nil {
		err = temp.Chmod(0o644)
	}
	if err == nil {
		err = temp.Sync()
	}
	if closeErr := temp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing staged image: %w", closeErr)
	}
	if err != nil {
		return 0, fmt.Errorf("restoring %s snapshot into %s: %w", compression, path, err)
	}

	if overwrite {
		err = os.Rename(staged, path)
	} else {
		// Link fails if path appeared while the snapshot was restored.
		err = os.Link(staged, path)
	}
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, existingImageError(path)
		}
		return 0, fmt.Errorf("moving restored image into %s: %w", path, err)
	}
	// A link leaves the staging name behind for the deferred removal.
	committed = overwrite
	return int(written / BlockSize), nil
}

func existingImageError(path string) error {
	return fmt.Errorf("image %s already exists (use overwrite to replace it)", path)
}

// openSnapshot peeks at the frame magic and returns a decompressing
// reader for the rest of the stream.
func openSnapshot(r io.Reader) (io.ReadCloser, Compression, error) {
	buffered := bufio.NewReader(r)
	magic, err := buffered.Peek(len(zstdMagic))
	if err != nil {
		return nil, 0, fmt.Errorf("reading snapshot header: %w", err)
	}

	switch {
	case bytes.Equal(magic, zstdMagic):
		decoder, err := zstd.NewReader(buffered)
		if err != nil {
			return nil, 0, fmt.Errorf("creating zstd decoder: %w", err)
		}
		return decoder.IOReadCloser(), CompressionZstd, nil
	case bytes.Equal(magic, lz4Magic):
		return io.NopCloser(lz4.NewReader(buffered)), CompressionLZ4, nil
	default:
		return nil, 0, fmt.Errorf("unrecognized snapshot header %x (want a zstd or lz4 frame)", magic)
	}
}
