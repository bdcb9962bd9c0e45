// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/blockfs/cmd/blockfs/cli"
	blockfsfuse "github.com/bureau-foundation/blockfs/lib/blockfs/fuse"
	"github.com/bureau-foundation/blockfs/lib/blockstore"
	"github.com/bureau-foundation/blockfs/lib/clock"
	"github.com/bureau-foundation/blockfs/lib/config"
)

func mountCommand() *cli.Command {
	var (
		configPath   string
		allowOther   bool
		logLevel     string
		syncInterval string
		blockCount   int
	)

	return &cli.Command{
		Name:    "mount",
		Summary: "Serve an image through FUSE",
		Description: `Mount an image and serve it until interrupted.

A missing image is formatted first. The image is flushed to disk every
sync interval, on fsync, and when the filesystem is unmounted by SIGINT,
SIGTERM, or fusermount -u.`,
		Usage: "blockfs mount [flags] [IMAGE MOUNTPOINT]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("mount", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "configuration file (default $BLOCKFS_CONFIG)")
			flagSet.BoolVar(&allowOther, "allow-other", false, "let other users access the mount (needs user_allow_other in /etc/fuse.conf)")
			flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn, or error (default log_level, info)")
			flagSet.StringVar(&syncInterval, "sync-interval", "", "how often to flush the image, 0 to flush only on fsync and unmount (default sync_interval, 30s)")
			flagSet.IntVar(&blockCount, "block-count", 0, "blocks when formatting a missing image (default format.block_count, 256)")
			return flagSet
		},
		Run: func(args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			switch len(args) {
			case 0:
			case 2:
				cfg.Image, cfg.Mountpoint = args[0], args[1]
			default:
				return fmt.Errorf("expected IMAGE and MOUNTPOINT, got %d arguments", len(args))
			}
			if allowOther {
				cfg.AllowOther = true
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if syncInterval != "" {
				cfg.SyncInterval = syncInterval
			}
			if blockCount != 0 {
				cfg.Format.BlockCount = blockCount
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Image == "" || cfg.Mountpoint == "" {
				return fmt.Errorf("image and mountpoint are required (as arguments or in the configuration)")
			}

			level, _ := cfg.Level()
			logger := cli.NewCommandLogger(level).With("command", "mount", "image", cfg.Image)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runMount(ctx, cfg, clock.Real(), logger)
		},
		Examples: []cli.Example{
			{Description: "Mount an image, formatting it if missing", Command: "blockfs mount disk.img /mnt/blockfs"},
			{Description: "Mount from a configuration file", Command: "blockfs mount --config ~/.config/blockfs.yaml"},
		},
	}
}

// runMount serves cfg.Image at cfg.Mountpoint until ctx is done or the
// filesystem is unmounted externally, then flushes and closes the
// image.
func runMount(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *slog.Logger) (err error) {
	exists, err := imageExists(cfg.Image)
	if err != nil {
		return err
	}
	if !exists {
		logger.Info("image missing; formatting", "blocks", cfg.Format.BlockCount)
		if err := formatImage(cfg.Image, cfg.Format.BlockCount, logger); err != nil {
			return err
		}
	}

	device, fs, err := openImage(cfg.Image, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := device.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	server, err := blockfsfuse.Mount(blockfsfuse.Options{
		Mountpoint: cfg.Mountpoint,
		FileSystem: fs,
		Syncer:     device,
		AllowOther: cfg.AllowOther,
		Clock:      clk,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	usage := fs.Usage()
	logger.Info("serving image",
		"mountpoint", cfg.Mountpoint,
		"free_blocks", usage.FreeBlocks(),
		"free_inodes", usage.FreeInodes(),
	)

	syncContext, cancelSync := context.WithCancel(ctx)
	var syncDone sync.WaitGroup
	if interval, _ := cfg.SyncEvery(); interval > 0 {
		syncDone.Add(1)
		go func() {
			defer syncDone.Done()
			blockstore.SyncLoop(syncContext, device, clk, interval, logger)
		}()
	}
	// The device must outlive the flush loop.
	defer func() {
		cancelSync()
		syncDone.Wait()
	}()

	served := make(chan struct{})
	go func() {
		server.Wait()
		close(served)
	}()

	select {
	case <-ctx.Done():
		logger.Info("unmounting", "mountpoint", cfg.Mountpoint)
		if err := unmount(server, served); err != nil {
			return fmt.Errorf("unmounting %s: %w", cfg.Mountpoint, err)
		}
	case <-served:
		logger.Info("unmounted externally", "mountpoint", cfg.Mountpoint)
	}
	return nil
}

type unmounter interface {
	Unmount() error
}

// unmount retries while the kernel reports the mount busy, then waits
// for the server loop to exit.
func unmount(server unmounter, served <-chan struct{}) error {
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		if err = server.Unmount(); err == nil {
			<-served
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return err
}
