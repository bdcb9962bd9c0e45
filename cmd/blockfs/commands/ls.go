// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/blockfs/cmd/blockfs/cli"
	"github.com/bureau-foundation/blockfs/lib/blockfs"
)

func lsCommand(stdout io.Writer) *cli.Command {
	var configPath string

	return &cli.Command{
		Name:    "ls",
		Summary: "List an image's contents without mounting it",
		Description: `Walk the directory tree of an image starting at PATH (default "/")
and print every entry with its mode, inode, and size.`,
		Usage: "blockfs ls [flags] IMAGE [PATH]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("ls", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "configuration file (default $BLOCKFS_CONFIG)")
			return flagSet
		},
		Run: func(args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			start := "/"
			if len(args) == 2 {
				start = args[1]
				args = args[:1]
			}
			image, err := imageArgument(args, cfg)
			if err != nil {
				return err
			}
			logger := cli.NewCommandLogger(slog.LevelWarn).With("command", "ls", "image", image)
			return runList(stdout, image, start, logger)
		},
		Examples: []cli.Example{
			{Description: "List a whole image", Command: "blockfs ls disk.img"},
			{Description: "List one directory", Command: "blockfs ls disk.img /notes"},
		},
	}
}

func runList(stdout io.Writer, image, start string, logger *slog.Logger) error {
	device, filesystem, err := openImage(image, logger)
	if err != nil {
		return err
	}
	defer device.Close()

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	if err := walk(tw, filesystem, start); err != nil {
		return err
	}
	return tw.Flush()
}

// walk prints target and, when it is a directory, everything beneath it
// in name order.
func walk(w io.Writer, filesystem *blockfs.FileSystem, target string) error {
	attributes, err := filesystem.Stat(target)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\t%d\t%d\t %s\n", fileMode(attributes.Mode), attributes.Inode, attributes.Size, target)
	if !attributes.IsDirectory() {
		return nil
	}

	directory, err := filesystem.List(target)
	if err != nil {
		return err
	}
	var names []string
	for _, entry := range directory.Entries() {
		if entry.Slot == 1 {
			continue
		}
		names = append(names, entry.Name)
	}
	slices.Sort(names)

	for _, name := range names {
		if err := walk(w, filesystem, childPath(target, name)); err != nil {
			return err
		}
	}
	return nil
}

func childPath(parent, name string) string {
	return path.Join("/", strings.TrimSuffix(parent, "/"), name)
}

// fileMode converts stored mode bits to an fs.FileMode for display.
func fileMode(mode uint32) fs.FileMode {
	result := fs.FileMode(mode & 0o777)
	if blockfs.IsDirectory(mode) {
		result |= fs.ModeDir
	}
	return result
}
