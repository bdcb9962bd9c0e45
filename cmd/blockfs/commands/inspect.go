// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/blockfs/cmd/blockfs/cli"
	"github.com/bureau-foundation/blockfs/lib/blockfs"
	"github.com/bureau-foundation/blockfs/lib/codec"
)

func inspectCommand(stdout io.Writer) *cli.Command {
	var configPath string

	return &cli.Command{
		Name:    "inspect",
		Summary: "Show an image's superblock and usage",
		Description: `Print the geometry recorded in an image's superblock and how many
blocks and inodes are in use.

An image whose superblock fails its checksum or disagrees with the file
size is reported as damaged and inspect exits with status 2.`,
		Usage: "blockfs inspect [flags] [IMAGE]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "configuration file (default $BLOCKFS_CONFIG)")
			return flagSet
		},
		Run: func(args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			image, err := imageArgument(args, cfg)
			if err != nil {
				return err
			}
			logger := cli.NewCommandLogger(slog.LevelError).With("command", "inspect", "image", image)
			return runInspect(stdout, image, logger)
		},
	}
}

func runInspect(stdout io.Writer, image string, logger *slog.Logger) error {
	device, err := openDevice(image)
	if err != nil {
		return err
	}
	defer device.Close()

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "image\t%s\n", image)
	fmt.Fprintf(tw, "size\t%s (%d blocks of %s)\n",
		humanize.IBytes(uint64(device.Size())), device.BlockCount(), humanize.IBytes(uint64(device.BlockSize())))

	fs, err := blockfs.Open(device, blockfs.Options{Logger: logger})
	if errors.Is(err, blockfs.ErrCorrupt) {
		fmt.Fprintf(tw, "status\tdamaged: %v\n", err)
		raw, blockErr := device.Block(blockfs.SuperblockBlock)
		if blockErr == nil {
			if diagnostic, _, diagErr := codec.DiagnoseFirst(raw); diagErr == nil {
				fmt.Fprintf(tw, "superblock\t%s\n", diagnostic)
			}
		}
		tw.Flush()
		return &cli.ExitError{Code: 2}
	}
	if err != nil {
		return err
	}

	superblock := fs.Superblock()
	if superblock.Magic == "" {
		fmt.Fprintf(tw, "format\tlegacy (no superblock)\n")
	} else {
		fmt.Fprintf(tw, "format\t%s v%d, formatted %s\n",
			superblock.Magic, superblock.Version, superblock.FormattedAt.UTC().Format(time.RFC3339))
	}

	usage := fs.Usage()
	fmt.Fprintf(tw, "blocks\t%d used, %d free (%s free)\n",
		usage.UsedBlocks, usage.FreeBlocks(), humanize.IBytes(uint64(usage.FreeBlocks())*uint64(usage.BlockSize)))
	fmt.Fprintf(tw, "inodes\t%d used, %d free\n", usage.UsedInodes, usage.FreeInodes())
	fmt.Fprintf(tw, "directories\t%d entries each, names up to %d bytes\n",
		blockfs.EntriesPerDirectory-1, blockfs.MaxNameLength)

	if superblock.Magic != "" {
		encoded, err := codec.Marshal(superblock)
		if err != nil {
			return fmt.Errorf("encoding superblock: %w", err)
		}
		diagnostic, _, err := codec.DiagnoseFirst(encoded)
		if err != nil {
			return fmt.Errorf("describing superblock: %w", err)
		}
		fmt.Fprintf(tw, "superblock\t%s\n", diagnostic)
	}
	return nil
}
