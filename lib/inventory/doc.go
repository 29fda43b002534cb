// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package inventory defines the process inventory data model: the
// per-device process and debugger proxy records, the partial update
// records that writers send, immutable snapshots of a device's state,
// and the diffs computed between snapshots.
//
// # Presence-based merge
//
// Writers see only part of a process's state at a time. Every optional
// attribute of [ProcessInfo] and [ProxyInfo] is a pointer: nil means
// "not known by this writer", and merging an update into a stored
// record keeps the stored value for every nil attribute. PID and
// Completed are mandatory and always overwritten.
//
// # Immutability
//
// A [Snapshot] is never modified after construction. [Snapshot.Apply]
// returns a new Snapshot. Records stored in a snapshot share pointer
// targets with the update records they were merged from; callers must
// treat pointed-to values as read-only once handed to this package.
package inventory
