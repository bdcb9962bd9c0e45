// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for blockfs packages.
//
// [RequireFUSE] skips tests that need a kernel mount when /dev/fuse or
// the fusermount helper is missing. [MountDir] and [ImagePath] give
// such tests a mountpoint and an image location.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) so that individual
// tests do not need direct time.After calls.
//
// [UniqueID] generates monotonically increasing identifiers for file
// names and contents that must not collide.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
