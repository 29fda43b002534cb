// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package usagecache provides a keyed cache whose entries are created
// on demand, reference counted while in use, and evicted after staying
// unused for a configurable delay.
//
// Callers never hold a value outside [Cache.WithValue]: the value is
// passed to a block, and the entry's reference count is held for the
// duration of that block. An entry is eligible for removal only when
// no block is using it and it has been idle for at least the removal
// delay. A background goroutine sweeps eligible entries; values that
// implement [io.Closer] are closed once removed.
package usagecache
