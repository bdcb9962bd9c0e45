// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration for blockfs
// on-disk metadata.
//
// The superblock is the only structured record on the image. It is
// written with Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items. The
// same descriptor always produces identical bytes, which is what lets
// a checksum over the encoded form detect corruption.
//
// Superblock blocks are zero-padded to the block size, so readers
// decode the first item with a stream decoder:
//
//	data, err := codec.Marshal(value)
//	err = codec.NewDecoder(bytes.NewReader(block)).Decode(&value)
//
// The inspect command prints the record with DiagnoseFirst.
//
// Types carry `cbor` struct tags. They are never marshaled to JSON.
package codec
