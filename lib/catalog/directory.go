// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/procinv/lib/clock"
	"github.com/bureau-foundation/procinv/lib/inventory"
	"github.com/bureau-foundation/procinv/lib/usagecache"
)

// DefaultIdleTimeout is how long an unused catalog is kept when
// DirectoryConfig.IdleTimeout is zero.
const DefaultIdleTimeout = 60 * time.Second

// DirectoryConfig configures a Directory.
type DirectoryConfig struct {
	// IdleTimeout is how long a catalog must stay unused before it is
	// discarded. Zero selects DefaultIdleTimeout.
	IdleTimeout time.Duration

	Clock      clock.Clock
	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

// Directory maps devices to their catalogs.
type Directory struct {
	logger *slog.Logger
	cache  *usagecache.Cache[inventory.DeviceID, *Catalog]
}

// NewDirectory creates an empty directory. Idle catalogs are reclaimed
// in the background until ctx is cancelled or Close is called.
func NewDirectory(ctx context.Context, config DirectoryConfig) (*Directory, error) {
	if config.IdleTimeout == 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	cache, err := usagecache.New[inventory.DeviceID, *Catalog](ctx, usagecache.Config{
		Name:         "device_catalogs",
		RemovalDelay: config.IdleTimeout,
		Clock:        config.Clock,
		Logger:       config.Logger,
		Registerer:   config.Registerer,
	})
	if err != nil {
		return nil, err
	}
	return &Directory{logger: config.Logger, cache: cache}, nil
}

// WithCatalog runs block with the catalog of device, creating an empty
// one if needed. The catalog is not reclaimed while block runs.
func (d *Directory) WithCatalog(device inventory.DeviceID, block func(*Catalog) error) error {
	return d.cache.WithValue(device, d.newCatalog, block)
}

func (d *Directory) newCatalog(device inventory.DeviceID) (*Catalog, error) {
	d.logger.Info("creating device catalog", "device", device.String())
	return New(device, d.logger), nil
}

// RemoveAllUnused discards every catalog that has been unused for the
// idle timeout.
func (d *Directory) RemoveAllUnused() { d.cache.RemoveAllUnused() }

// Purge discards every catalog not currently in use.
func (d *Directory) Purge() { d.cache.Purge() }

// Len returns the number of catalogs.
func (d *Directory) Len() int { return d.cache.Len() }

// Close stops background reclamation and discards unused catalogs.
// WithCatalog fails with usagecache.ErrClosed afterwards.
func (d *Directory) Close() { d.cache.Close() }
