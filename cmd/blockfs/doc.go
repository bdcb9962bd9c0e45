// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Blockfs formats, mounts, and inspects blockfs images.
//
// Usage:
//
//	blockfs mkfs [--block-count N] [--force] IMAGE
//	blockfs mount [--config FILE] [--allow-other] [--log-level L] [IMAGE MOUNTPOINT]
//	blockfs inspect IMAGE
//	blockfs ls IMAGE [PATH]
//	blockfs snapshot export [--compression zstd|lz4] IMAGE OUT
//	blockfs snapshot import [--force] IN IMAGE
//
// Every form accepts --version. Configuration comes from the YAML file
// named by --config or BLOCKFS_CONFIG; see lib/config.
package main
