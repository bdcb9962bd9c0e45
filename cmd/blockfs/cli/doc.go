// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the blockfs
// binary.
//
// The central type is [Command]: a named subcommand with optional
// nested [Command.Subcommands], a [pflag.FlagSet] factory, and a Run
// function. The tree is assembled in cmd/blockfs/commands and
// dispatched via [Command.Execute], which handles flag parsing,
// subcommand routing, and help output with examples.
//
// An unknown subcommand or flag gets a suggestion when a known name
// is within edit distance 3.
//
// [NewCommandLogger] and [Confirm] adapt their behavior to whether
// the process is attached to a terminal.
package cli
