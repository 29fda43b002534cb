// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the inventory
// packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] bound every wait
// on a channel with a wall-clock timeout, so a broken subscription or a
// leaked goroutine fails the test instead of hanging it. They are the
// only place in the test suite where real wall-clock timeouts are used;
// everything else runs on lib/clock.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no internal dependencies.
package testutil
