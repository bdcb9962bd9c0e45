// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/blockfs/cmd/blockfs/cli"
	"github.com/bureau-foundation/blockfs/lib/blockstore"
)

func mkfsCommand(stdout io.Writer) *cli.Command {
	var (
		configPath string
		blockCount int
		force      bool
	)

	return &cli.Command{
		Name:    "mkfs",
		Summary: "Format a new image",
		Description: `Create an image file and write an empty filesystem to it.

An existing image is only replaced with --force, or after confirmation
when running on a terminal.`,
		Usage: "blockfs mkfs [flags] [IMAGE]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("mkfs", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "configuration file (default $BLOCKFS_CONFIG)")
			flagSet.IntVar(&blockCount, "block-count", 0, "number of 4 KiB blocks, a multiple of 8 (default format.block_count, 256)")
			flagSet.BoolVarP(&force, "force", "f", false, "replace an existing image without asking")
			return flagSet
		},
		Run: func(args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if blockCount != 0 {
				cfg.Format.BlockCount = blockCount
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			image, err := imageArgument(args, cfg)
			if err != nil {
				return err
			}
			logger := cli.NewCommandLogger(slog.LevelWarn).With("command", "mkfs", "image", image)
			return runMkfs(stdout, image, cfg.Format.BlockCount, force, cli.Confirm, logger)
		},
		Examples: []cli.Example{
			{Description: "Format a 1 MiB image", Command: "blockfs mkfs disk.img"},
			{Description: "Replace an image with a 4 MiB one", Command: "blockfs mkfs --force --block-count 1024 disk.img"},
		},
	}
}

func runMkfs(stdout io.Writer, image string, blockCount int, force bool, confirm func(string) (bool, error), logger *slog.Logger) error {
	exists, err := imageExists(image)
	if err != nil {
		return err
	}
	if exists && !force {
		replace, err := confirm(fmt.Sprintf("Replace existing image %s?", image))
		if err != nil {
			return err
		}
		if !replace {
			return fmt.Errorf("image %s already exists (use --force to replace it)", image)
		}
	}

	if err := formatImage(image, blockCount, logger); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "formatted %s: %d blocks of %s (%s)\n",
		image, blockCount,
		humanize.IBytes(blockstore.BlockSize),
		humanize.IBytes(uint64(blockCount)*blockstore.BlockSize),
	)
	return nil
}
