// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the blockfs command tree: mkfs, mount,
// inspect, ls, and snapshot export/import. Every command reads the
// same YAML configuration (--config or BLOCKFS_CONFIG) and lets
// positional arguments and flags override it.
package commands
