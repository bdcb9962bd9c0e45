// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blockstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/bureau-foundation/blockfs/lib/clock"
)

// Syncer flushes buffered writes to stable storage. [Device]
// implements it.
type Syncer interface {
	Sync() error
}

// SyncLoop calls Sync on syncer once per interval until ctx is done.
// A failed flush is logged and retried on the next tick; the caller
// still owns the final flush at shutdown.
func SyncLoop(ctx context.Context, syncer Syncer, clk clock.Clock, interval time.Duration, logger *slog.Logger) {
	ticker := clk.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := syncer.Sync(); err != nil {
				logger.Error("periodic image sync failed", "error", err)
				continue
			}
			logger.Debug("image synced")
		}
	}
}
