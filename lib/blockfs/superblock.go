// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blockfs

import (
	"bytes"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/blockfs/lib/codec"
)

const (
	superblockMagic   = "blockfs"
	superblockVersion = 1
)

// Superblock describes the geometry an image was formatted with.
type Superblock struct {
	Magic               string    `cbor:"magic"`
	Version             int       `cbor:"version"`
	BlockSize           int       `cbor:"block_size"`
	BlockCount          int       `cbor:"block_count"`
	InodeCapacity       int       `cbor:"inode_capacity"`
	EntriesPerDirectory int       `cbor:"entries_per_directory"`
	FormattedAt         time.Time `cbor:"formatted_at"`
}

// superblockRecord is what SuperblockBlock actually holds: the encoded
// descriptor and its BLAKE3 digest, so a torn or foreign block 2 is
// detected before its geometry is trusted.
type superblockRecord struct {
	Descriptor []byte `cbor:"descriptor"`
	Checksum   []byte `cbor:"checksum"`
}

func newSuperblock(geometry layout, formattedAt time.Time) Superblock {
	return Superblock{
		Magic:               superblockMagic,
		Version:             superblockVersion,
		BlockSize:           geometry.blockSize,
		BlockCount:          geometry.blockCount,
		InodeCapacity:       geometry.inodeCapacity,
		EntriesPerDirectory: EntriesPerDirectory,
		FormattedAt:         formattedAt.UTC().Truncate(time.Second),
	}
}

// writeSuperblock encodes superblock into block, zeroing the rest.
func writeSuperblock(block []byte, superblock Superblock) error {
	descriptor, err := codec.Marshal(superblock)
	if err != nil {
		return fmt.Errorf("encoding superblock: %w", err)
	}
	checksum := blake3.Sum256(descriptor)
	encoded, err := codec.Marshal(superblockRecord{
		Descriptor: descriptor,
		Checksum:   checksum[:],
	})
	if err != nil {
		return fmt.Errorf("encoding superblock record: %w", err)
	}
	if len(encoded) > len(block) {
		return fmt.Errorf("superblock record is %d bytes, larger than a %d-byte block", len(encoded), len(block))
	}
	clear(block)
	copy(block, encoded)
	return nil
}

// readSuperblock decodes block. A block that does not carry the
// superblock magic has no superblock and returns found=false with no
// error; the caller decides whether its contents are legitimate.
func readSuperblock(block []byte) (superblock Superblock, found bool, err error) {
	if !bytes.Contains(block, []byte(superblockMagic)) {
		return Superblock{}, false, nil
	}

	var record superblockRecord
	if err := codec.NewDecoder(bytes.NewReader(block)).Decode(&record); err != nil {
		return Superblock{}, false, fmt.Errorf("%w: decoding superblock: %v", ErrCorrupt, err)
	}
	checksum := blake3.Sum256(record.Descriptor)
	if !bytes.Equal(checksum[:], record.Checksum) {
		return Superblock{}, false, fmt.Errorf("%w: superblock checksum mismatch", ErrCorrupt)
	}
	if err := codec.Unmarshal(record.Descriptor, &superblock); err != nil {
		return Superblock{}, false, fmt.Errorf("%w: decoding superblock descriptor: %v", ErrCorrupt, err)
	}
	if superblock.Magic != superblockMagic {
		return Superblock{}, false, fmt.Errorf("%w: superblock magic %q", ErrCorrupt, superblock.Magic)
	}
	if superblock.Version != superblockVersion {
		return Superblock{}, false, fmt.Errorf("%w: unsupported superblock version %d", ErrCorrupt, superblock.Version)
	}
	return superblock, true, nil
}

// matches reports a geometry mismatch between the superblock and the
// device it was read from.
func (s Superblock) matches(geometry layout) error {
	switch {
	case s.BlockSize != geometry.blockSize:
		return fmt.Errorf("%w: formatted with %d-byte blocks, device has %d", ErrCorrupt, s.BlockSize, geometry.blockSize)
	case s.BlockCount != geometry.blockCount:
		return fmt.Errorf("%w: formatted with %d blocks, device has %d", ErrCorrupt, s.BlockCount, geometry.blockCount)
	case s.InodeCapacity != geometry.inodeCapacity:
		return fmt.Errorf("%w: formatted with %d inodes, layout has %d", ErrCorrupt, s.InodeCapacity, geometry.inodeCapacity)
	case s.EntriesPerDirectory != EntriesPerDirectory:
		return fmt.Errorf("%w: formatted with %d entries per directory, engine uses %d",
			ErrCorrupt, s.EntriesPerDirectory, EntriesPerDirectory)
	}
	return nil
}

func isZero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
