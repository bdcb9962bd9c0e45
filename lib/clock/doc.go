// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Code that stamps records (the superblock's format time) or runs
// periodic work (the image sync loop) takes a Clock instead of calling
// time.Now or time.NewTicker directly. Real() provides the standard
// library behavior. Fake() provides a clock that moves only when
// Advance is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go loop(ctx, c)
//	c.WaitForTickers(1)         // wait for the loop to start its ticker
//	c.Advance(30 * time.Second) // deliver one tick
package clock
