// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package blockstore provides the raw block layer under blockfs: a
// fixed array of [BlockSize]-byte blocks addressed by index.
//
// A [Device] is backed either by an image file or by memory. Image
// files are memory-mapped read-write and shared, so a block slice
// returned by [Device.Block] aliases the file contents directly:
// writes into it reach the page cache immediately and the disk on
// [Device.Sync] or [Device.Close]. Memory devices ([NewMemory]) have
// the same interface and exist for tests and tooling.
//
// The image size is fixed when the image is created. Opening an
// existing image at a different block count is an error rather than
// a silent resize.
//
// [Export] and [Import] move a whole image to and from a compressed
// snapshot stream, zstd or LZ4. Images are mostly zero, so snapshots
// are small.
package blockstore
