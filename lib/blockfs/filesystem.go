// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blockfs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/bureau-foundation/blockfs/lib/clock"
)

// DefaultRootMode is the mode given to "/" when the engine creates it.
const DefaultRootMode = ModeDirectory | 0o755

// Options configures an opened filesystem.
type Options struct {
	// Logger receives debug records for every mutation and warnings
	// about the image. If nil, a text logger at error level on
	// stderr is used.
	Logger *slog.Logger
}

// FormatOptions configures Format.
type FormatOptions struct {
	// Clock stamps the superblock. If nil, the real clock is used.
	Clock clock.Clock

	// RootMode is the mode of the root directory. Zero uses
	// DefaultRootMode.
	RootMode uint32

	// Logger is passed through to the filesystem Format builds.
	Logger *slog.Logger
}

// FileSystem is the engine over one block device. All methods are
// safe for concurrent use: each takes a single engine-wide lock, so
// operations run one at a time.
type FileSystem struct {
	mu sync.Mutex

	device     BlockDevice
	geometry   layout
	allocator  allocator
	inodes     inodeTable
	superblock Superblock
	logger     *slog.Logger

	uid uint32
	gid uint32
}

// Format writes an empty filesystem to device: reserved blocks,
// superblock, and a root directory holding only its self entry.
// Existing contents of the reserved blocks are discarded; data blocks
// are zeroed lazily as they are allocated.
func Format(device BlockDevice, options FormatOptions) error {
	geometry, err := newLayout(device)
	if err != nil {
		return err
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.RootMode == 0 {
		options.RootMode = DefaultRootMode
	}

	for index := 0; index < reservedBlocks; index++ {
		block, err := device.Block(index)
		if err != nil {
			return fmt.Errorf("clearing reserved block %d: %w", index, err)
		}
		clear(block)
	}

	fs, err := newFileSystem(device, geometry, options.Logger)
	if err != nil {
		return err
	}
	for index := 0; index < reservedBlocks; index++ {
		fs.allocator.reserve(kindBlock, index)
	}

	superblock := newSuperblock(geometry, options.Clock.Now())
	block, err := device.Block(SuperblockBlock)
	if err != nil {
		return err
	}
	if err := writeSuperblock(block, superblock); err != nil {
		return err
	}

	if _, err := fs.Create("/", options.RootMode); err != nil {
		return fmt.Errorf("creating root directory: %w", err)
	}
	fs.logger.Info("formatted filesystem",
		"blocks", geometry.blockCount,
		"inodes", geometry.inodeCapacity,
	)
	return nil
}

// Open attaches the engine to a formatted device. A missing root
// directory is created. Images without a superblock are accepted when
// their block bitmap reserves the inode table and root blocks, the
// state the original layout leaves behind. Such images may keep a
// file's data in SuperblockBlock, which is then left to that file.
func Open(device BlockDevice, options Options) (*FileSystem, error) {
	geometry, err := newLayout(device)
	if err != nil {
		return nil, err
	}
	fs, err := newFileSystem(device, geometry, options.Logger)
	if err != nil {
		return nil, err
	}

	block, err := device.Block(SuperblockBlock)
	if err != nil {
		return nil, err
	}
	superblock, found, err := readSuperblock(block)
	if err != nil {
		return nil, err
	}
	if found {
		if err := superblock.matches(geometry); err != nil {
			return nil, err
		}
		fs.superblock = superblock
	} else {
		if !fs.allocator.allocated(kindBlock, InodeTableBlock) || !fs.allocator.allocated(kindBlock, RootBlock) {
			return nil, fmt.Errorf("%w: no superblock and no reserved blocks (image is not formatted)", ErrCorrupt)
		}
		if !isZero(block) && fs.allocator.allocated(kindBlock, SuperblockBlock) {
			owner, owned := fs.blockOwner(SuperblockBlock)
			if !owned {
				return nil, fmt.Errorf("%w: block %d holds neither a superblock nor file data", ErrCorrupt, SuperblockBlock)
			}
			fs.logger.Debug("legacy file occupies the superblock slot", "inode", owner)
		}
		fs.logger.Warn("image has no superblock; assuming legacy layout",
			"blocks", geometry.blockCount,
		)
		// Mark the reserved blocks used. A bit already set belongs to
		// a live file and stays with it; releaseInode never frees a
		// reserved block, so the slot is kept once that file goes.
		for index := 0; index < reservedBlocks; index++ {
			if !fs.allocator.allocated(kindBlock, index) {
				fs.allocator.reserve(kindBlock, index)
			}
		}
	}

	if _, err := fs.Inode("/"); errors.Is(err, ErrNotFound) {
		fs.logger.Warn("root directory missing; creating it")
		if _, err := fs.Create("/", DefaultRootMode); err != nil {
			return nil, fmt.Errorf("creating root directory: %w", err)
		}
	} else if err != nil {
		return nil, err
	}
	return fs, nil
}

func newFileSystem(device BlockDevice, geometry layout, logger *slog.Logger) (*FileSystem, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}
	bitmapBlock, err := device.Block(BitmapBlock)
	if err != nil {
		return nil, fmt.Errorf("reading bitmap block: %w", err)
	}
	inodeBlock, err := device.Block(InodeTableBlock)
	if err != nil {
		return nil, fmt.Errorf("reading inode table block: %w", err)
	}
	return &FileSystem{
		device:    device,
		geometry:  geometry,
		allocator: newAllocator(bitmapBlock, geometry),
		inodes:    inodeTable{block: inodeBlock, capacity: geometry.inodeCapacity},
		logger:    logger,
		uid:       uint32(os.Geteuid()),
		gid:       uint32(os.Getegid()),
	}, nil
}

// blockOwner returns the allocated inode whose data lives in block.
func (fs *FileSystem) blockOwner(block BlockIndex) (InodeIndex, bool) {
	for index := 0; index < fs.geometry.inodeCapacity; index++ {
		if !fs.allocator.allocated(kindInode, index) {
			continue
		}
		inode, err := fs.inodes.reference(InodeIndex(index))
		if err != nil {
			return 0, false
		}
		if inode.block() == block {
			return InodeIndex(index), true
		}
	}
	return 0, false
}

// Superblock returns the decoded superblock, or the zero value for a
// legacy image.
func (fs *FileSystem) Superblock() Superblock {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.superblock
}

// Usage counts allocated and total blocks and inodes.
type Usage struct {
	BlockSize   int
	TotalBlocks int
	UsedBlocks  int
	TotalInodes int
	UsedInodes  int
}

// FreeBlocks returns TotalBlocks - UsedBlocks.
func (u Usage) FreeBlocks() int { return u.TotalBlocks - u.UsedBlocks }

// FreeInodes returns TotalInodes - UsedInodes.
func (u Usage) FreeInodes() int { return u.TotalInodes - u.UsedInodes }

// Usage reports allocation counts from the bitmaps.
func (fs *FileSystem) Usage() Usage {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return Usage{
		BlockSize:   fs.geometry.blockSize,
		TotalBlocks: fs.geometry.blockCount,
		UsedBlocks:  fs.allocator.used(kindBlock),
		TotalInodes: fs.geometry.inodeCapacity,
		UsedInodes:  fs.allocator.used(kindInode),
	}
}

// BlockSize returns the capacity of a file in bytes.
func (fs *FileSystem) BlockSize() int {
	return fs.geometry.blockSize
}
