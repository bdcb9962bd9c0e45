// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bitindex reads and writes individual bits of a byte region.
//
// A [Vector] is a view over caller-owned memory, usually a slice of a
// memory-mapped block, so every Set is visible in the backing image
// without a separate write-back step. Bits are numbered LSB-first
// within each byte: bit i lives in byte i/8 at position i%8. This
// matches the allocation bitmaps and directory occupancy vectors of
// the blockfs on-disk format.
//
// This package has no dependencies outside the standard library.
package bitindex
