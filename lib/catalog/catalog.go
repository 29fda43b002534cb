// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/procinv/lib/inventory"
)

// ErrClosed is returned by Apply and Track once the catalog has been
// closed.
var ErrClosed = errors.New("catalog: closed")

// Catalog is the process inventory of one device.
type Catalog struct {
	device inventory.DeviceID
	logger *slog.Logger

	mu       sync.Mutex
	snapshot inventory.Snapshot

	// changed is closed and replaced on every snapshot replacement,
	// waking every subscriber waiting on the old channel.
	changed chan struct{}
	closed  bool
}

// New returns an empty catalog for device.
func New(device inventory.DeviceID, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		device:  device,
		logger:  logger.With("device", device.String()),
		changed: make(chan struct{}),
	}
}

// Device returns the device this catalog describes.
func (c *Catalog) Device() inventory.DeviceID {
	return c.device
}

// Snapshot returns the current snapshot.
func (c *Catalog) Snapshot() inventory.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Apply replaces the snapshot with the result of applying batch to it.
// The batch is validated first; an invalid record rejects the whole
// batch with an error wrapping [inventory.ErrInvalidUpdate] and leaves
// the snapshot untouched.
//
// Subscribers are woken even when the batch changes nothing. They
// compare against their own baseline and stay silent in that case.
func (c *Catalog) Apply(batch []inventory.Update) error {
	if err := inventory.ValidateBatch(batch); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.snapshot = c.snapshot.Apply(batch)
	close(c.changed)
	c.changed = make(chan struct{})

	c.logger.Debug("process list updated",
		"updates", len(batch),
		"processes", len(c.snapshot.Processes()),
		"proxies", len(c.snapshot.Proxies()),
	)
	return nil
}

// Track reports the inventory of the device to emit until ctx is
// cancelled, emit fails, or the catalog is closed.
//
// The first call to emit always carries the whole current snapshot as
// added processes and proxies, even when the snapshot is empty. Each
// following call carries the non-empty difference between the last
// emitted state and the current one. Emit runs on the calling
// goroutine; while it blocks, replacements are coalesced into the next
// diff.
//
// Track returns ctx.Err() on cancellation, the emit error unchanged,
// or [ErrClosed]. A failing subscriber does not affect other
// subscribers or the catalog.
func (c *Catalog) Track(ctx context.Context, emit func(inventory.Diff) error) error {
	snapshot, changed, err := c.current()
	if err != nil {
		return err
	}
	if err := emit(inventory.InitialDiff(snapshot)); err != nil {
		return err
	}
	baseline := snapshot

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}

		snapshot, changed, err = c.current()
		if err != nil {
			return err
		}
		diff := inventory.ComputeDiff(baseline, snapshot)
		if diff.IsEmpty() {
			continue
		}
		if err := emit(diff); err != nil {
			return err
		}
		baseline = snapshot
	}
}

// current returns the snapshot with the channel that will be closed on
// its replacement.
func (c *Catalog) current() (inventory.Snapshot, <-chan struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return inventory.Snapshot{}, nil, ErrClosed
	}
	return c.snapshot, c.changed, nil
}

// Close releases the catalog. Running Track calls return ErrClosed.
// Close is idempotent and always returns nil; it implements io.Closer
// so the directory cache releases evicted catalogs.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.changed)
	c.logger.Debug("catalog closed")
	return nil
}
