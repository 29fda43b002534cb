// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog holds the live process inventory of devices.
//
// A [Catalog] owns the current [inventory.Snapshot] of one device.
// Writers replace the snapshot through [Catalog.Apply]; every
// replacement is serialized so concurrent writers never lose an
// update. Readers subscribe with [Catalog.Track], which first reports
// the whole snapshot as added and then reports each observable change
// against the subscriber's own baseline. A subscriber that falls
// behind sees one diff covering every replacement it missed, never a
// queue of stale intermediate states.
//
// A [Directory] maps device identifiers to catalogs, creating them on
// first use and reclaiming them once no connection has used them for
// the idle timeout. There is no reliable "device went away" signal at
// this layer, so idle reclamation is the only way a catalog goes away.
package catalog
