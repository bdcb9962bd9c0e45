// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/blockfs/cmd/blockfs/cli"
	"github.com/bureau-foundation/blockfs/lib/blockfs"
	"github.com/bureau-foundation/blockfs/lib/blockstore"
	"github.com/bureau-foundation/blockfs/lib/clock"
	"github.com/bureau-foundation/blockfs/lib/sealed"
)

func snapshotCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "snapshot",
		Summary: "Export or import compressed image snapshots",
		Description: `Copy a whole image to or from a compressed snapshot file.

Snapshots are a single zstd or lz4 frame, optionally encrypted with
age to one or more recipients. Import detects compression and
encryption from the stream header.`,
		Subcommands: []*cli.Command{
			snapshotExportCommand(stdout),
			snapshotImportCommand(stdout),
			snapshotKeygenCommand(stdout),
		},
	}
}

func snapshotExportCommand(stdout io.Writer) *cli.Command {
	var (
		configPath  string
		compression string
		recipients  []string
	)

	return &cli.Command{
		Name:    "export",
		Summary: "Write a compressed copy of an image",
		Usage:   "blockfs snapshot export [flags] IMAGE OUT",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("export", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "configuration file (default $BLOCKFS_CONFIG)")
			flagSet.StringVar(&compression, "compression", "", "zstd or lz4 (default snapshot.compression, zstd)")
			flagSet.StringArrayVarP(&recipients, "recipient", "r", nil, "encrypt to this age public key (repeatable)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected IMAGE and OUT, got %d arguments (use - for stdout)", len(args))
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if compression == "" {
				compression = cfg.Snapshot.Compression
			}
			format, err := blockstore.ParseCompression(compression)
			if err != nil {
				return err
			}
			for _, recipient := range recipients {
				if err := sealed.ParsePublicKey(recipient); err != nil {
					return err
				}
			}
			return runExport(stdout, args[0], args[1], format, recipients)
		},
		Examples: []cli.Example{
			{Description: "Export with zstd", Command: "blockfs snapshot export disk.img disk.img.zst"},
			{Description: "Stream an lz4 snapshot elsewhere", Command: "blockfs snapshot export --compression lz4 disk.img - | ssh host 'cat > disk.lz4'"},
			{Description: "Export an encrypted snapshot", Command: "blockfs snapshot export -r age1... disk.img disk.img.zst.age"},
		},
	}
}

func runExport(stdout io.Writer, image, out string, compression blockstore.Compression, recipients []string) error {
	device, err := openDevice(image)
	if err != nil {
		return err
	}
	defer device.Close()

	if out == "-" {
		return exportTo(stdout, device, compression, recipients)
	}

	file, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating snapshot %s: %w", out, err)
	}
	if err := exportTo(file, device, compression, recipients); err != nil {
		return errors.Join(err, file.Close(), os.Remove(out))
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing snapshot %s: %w", out, err)
	}

	info, err := os.Stat(out)
	if err != nil {
		return err
	}
	encryption := ""
	if len(recipients) > 0 {
		encryption = fmt.Sprintf(", encrypted to %d recipients", len(recipients))
	}
	fmt.Fprintf(stdout, "exported %s to %s: %s %s, %s%s\n",
		image, out, humanize.IBytes(uint64(device.Size())), compression, humanize.IBytes(uint64(info.Size())), encryption)
	return nil
}

// exportTo writes the snapshot to w, through age when recipients are
// given. Compression happens before encryption.
func exportTo(w io.Writer, device *blockstore.Device, compression blockstore.Compression, recipients []string) error {
	if len(recipients) == 0 {
		return blockstore.Export(w, device, compression)
	}
	encrypted, err := sealed.Encrypt(w, recipients)
	if err != nil {
		return err
	}
	if err := blockstore.Export(encrypted, device, compression); err != nil {
		return errors.Join(err, encrypted.Close())
	}
	if err := encrypted.Close(); err != nil {
		return fmt.Errorf("finishing encryption: %w", err)
	}
	return nil
}

func snapshotImportCommand(stdout io.Writer) *cli.Command {
	var (
		force    bool
		identity string
	)

	return &cli.Command{
		Name:    "import",
		Summary: "Restore an image from a snapshot",
		Usage:   "blockfs snapshot import [flags] IN IMAGE",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("import", pflag.ContinueOnError)
			flagSet.BoolVarP(&force, "force", "f", false, "replace an existing image")
			flagSet.StringVarP(&identity, "identity", "i", "", "age identity file for an encrypted snapshot")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected IN and IMAGE, got %d arguments (use - for stdin)", len(args))
			}
			logger := cli.NewCommandLogger(slog.LevelWarn).With("command", "snapshot/import", "image", args[1])
			return runImport(stdout, os.Stdin, args[0], args[1], importOptions{force: force, identity: identity}, logger)
		},
	}
}

type importOptions struct {
	force    bool
	identity string
}

func runImport(stdout io.Writer, stdin io.Reader, in, image string, options importOptions, logger *slog.Logger) error {
	input := stdin
	if in != "-" {
		file, err := os.Open(in)
		if err != nil {
			return fmt.Errorf("opening snapshot: %w", err)
		}
		defer file.Close()
		input = file
	}

	buffered := bufio.NewReader(input)
	var source io.Reader = buffered
	if sealed.IsEncrypted(buffered) {
		if options.identity == "" {
			return fmt.Errorf("snapshot %s is encrypted (use --identity)", in)
		}
		plaintext, err := sealed.Decrypt(buffered, options.identity)
		if err != nil {
			return err
		}
		source = plaintext
	}

	blocks, err := blockstore.Import(source, image, options.force)
	if err != nil {
		return err
	}

	// A snapshot that decompresses cleanly can still hold a damaged
	// filesystem.
	device, err := blockstore.Open(image, blocks)
	if err != nil {
		return err
	}
	defer device.Close()
	if _, err := blockfs.Open(device, blockfs.Options{Logger: logger}); err != nil {
		return fmt.Errorf("imported %s but the filesystem does not open: %w", image, err)
	}

	fmt.Fprintf(stdout, "imported %s into %s: %d blocks (%s)\n",
		in, image, blocks, humanize.IBytes(uint64(blocks)*blockstore.BlockSize))
	return nil
}

func snapshotKeygenCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "keygen",
		Summary: "Create an age identity for encrypted snapshots",
		Description: `Generate an age x25519 keypair, store it in IDENTITY (readable only by
you), and print the public key to pass to "snapshot export --recipient".

The file uses the age-keygen format, so age can decrypt the snapshots
too.`,
		Usage: "blockfs snapshot keygen IDENTITY",
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected the identity file path, got %d arguments", len(args))
			}
			return runKeygen(stdout, args[0], clock.Real())
		},
	}
}

// runKeygen writes a fresh identity to path, stamped with clk, and
// prints its public key.
func runKeygen(stdout io.Writer, path string, clk clock.Clock) error {
	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		return err
	}
	if err := sealed.WriteIdentityFile(path, keypair, clk.Now()); err != nil {
		return err
	}
	fmt.Fprintln(stdout, keypair.PublicKey)
	return nil
}
