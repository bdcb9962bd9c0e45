// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the blockfs
// command.
//
// Configuration is loaded from a single file specified by either the
// BLOCKFS_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no ~/.config discovery and no automatic
// file search. Command-line flags and positional arguments override
// loaded values.
//
// Variable expansion is performed on the image and mountpoint paths
// after loading: ${HOME} and ${VAR:-default} patterns are expanded.
package config
