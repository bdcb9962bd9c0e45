// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the blockfs
// binary.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//	go build -ldflags "-X github.com/bureau-foundation/blockfs/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Without them, [Info] falls back to the VCS revision recorded in the
// binary's build info, then to "unknown".
package version
