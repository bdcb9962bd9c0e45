// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bureau-foundation/blockfs/lib/blockfs"
	"github.com/bureau-foundation/blockfs/lib/blockstore"
	"github.com/bureau-foundation/blockfs/lib/config"
)

// loadConfig reads the file at path, or the file named by
// BLOCKFS_CONFIG when path is empty. With neither, defaults apply.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case path != "":
		cfg, err = config.LoadFile(path)
	case os.Getenv(config.ConfigEnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// imageArgument returns the image path from the first positional
// argument, falling back to the configured image.
func imageArgument(args []string, cfg *config.Config) (string, error) {
	switch {
	case len(args) > 1:
		return "", fmt.Errorf("expected one image path, got %d arguments", len(args))
	case len(args) == 1:
		return args[0], nil
	case cfg.Image != "":
		return cfg.Image, nil
	}
	return "", fmt.Errorf("image path required (as an argument or \"image\" in the configuration)")
}

// openDevice maps an existing image without creating one.
func openDevice(path string) (*blockstore.Device, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("image %s is a directory", path)
	}
	return blockstore.Open(path, 0)
}

// openImage maps an existing image and attaches the engine to it.
func openImage(path string, logger *slog.Logger) (*blockstore.Device, *blockfs.FileSystem, error) {
	device, err := openDevice(path)
	if err != nil {
		return nil, nil, err
	}
	fs, err := blockfs.Open(device, blockfs.Options{Logger: logger})
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("opening filesystem in %s: %w", path, err), device.Close())
	}
	return device, fs, nil
}

// imageExists reports whether path holds a non-empty file.
func imageExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Size() > 0, nil
}

// formatImage creates or replaces the image at path with an empty
// filesystem of blockCount blocks.
func formatImage(path string, blockCount int, logger *slog.Logger) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing old image %s: %w", path, err)
	}
	device, err := blockstore.Open(path, blockCount)
	if err != nil {
		return err
	}
	if err := blockfs.Format(device, blockfs.FormatOptions{Logger: logger}); err != nil {
		return errors.Join(fmt.Errorf("formatting %s: %w", path, err), device.Close(), os.Remove(path))
	}
	return device.Close()
}
