// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that schedule work (the usage cache sweep) or compare
// timestamps (idle eviction) take a Clock instead of calling the time
// package directly. Real() is the production implementation. Fake()
// returns a FakeClock that only moves when Advance is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	cache, _ := usagecache.New[string, int](ctx, usagecache.Config{Clock: c, ...})
//	c.WaitForTimers(1)         // sweep goroutine registered its ticker
//	c.Advance(time.Minute)     // fire the ticker deterministically
//
// WaitForTimers closes the race between a goroutine registering a
// ticker and the test advancing time past it.
package clock
