// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/blockfs/cmd/blockfs/cli"
	"github.com/bureau-foundation/blockfs/lib/version"
)

// Root builds the complete blockfs command tree writing results to
// standard output.
func Root() *cli.Command {
	return newRoot(os.Stdout)
}

func newRoot(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name: "blockfs",
		Description: `blockfs: a single-block-per-file filesystem in an image file.

Each file and directory occupies exactly one 4 KiB block. Images are
formatted with mkfs and served to the kernel through FUSE with mount.`,
		Version: func() string { return "blockfs " + version.Info() },
		Stdout:  stdout,
		Subcommands: []*cli.Command{
			mkfsCommand(stdout),
			mountCommand(),
			inspectCommand(stdout),
			lsCommand(stdout),
			snapshotCommand(stdout),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Fprintf(stdout, "blockfs %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{Description: "Format and mount an image", Command: "blockfs mkfs disk.img && blockfs mount disk.img /mnt/blockfs"},
			{Description: "List everything stored in an image", Command: "blockfs ls disk.img"},
		},
	}
}
