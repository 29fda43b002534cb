// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package usagecache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/procinv/lib/clock"
)

// ErrClosed is returned by WithValue after the cache has been closed.
var ErrClosed = errors.New("usagecache: cache closed")

// minSweepInterval bounds how often the background sweep runs for
// very short removal delays.
const minSweepInterval = 20 * time.Millisecond

// Config configures a Cache.
type Config struct {
	// Name labels log lines and metrics. Required when Registerer is
	// set, since it distinguishes caches sharing a registry.
	Name string

	// RemovalDelay is how long an entry must stay unused before the
	// sweep removes it. Zero removes unused entries on the next sweep.
	RemovalDelay time.Duration

	// Clock drives idle accounting and the sweep ticker. Defaults to
	// clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Registerer receives the cache metrics. Nil disables metrics.
	Registerer prometheus.Registerer

	// afterSweep is called after every background sweep pass.
	afterSweep func()
}

// Cache maps keys to lazily created values. See the package
// documentation for the lifetime rules.
type Cache[K comparable, V any] struct {
	name    string
	delay   time.Duration
	clock   clock.Clock
	logger  *slog.Logger
	metrics *cacheMetrics

	mu      sync.Mutex
	entries map[K]*entry[V]
	closed  bool

	cancel     context.CancelFunc
	sweepDone  chan struct{}
	afterSweep func()
}

type entry[V any] struct {
	value V

	// refs counts the WithValue blocks currently using value.
	refs int

	// lastUsed is when refs last changed.
	lastUsed time.Time
}

// New creates a cache and starts its sweep goroutine, which runs until
// ctx is cancelled or Close is called.
func New[K comparable, V any](ctx context.Context, config Config) (*Cache[K, V], error) {
	if config.RemovalDelay < 0 {
		return nil, fmt.Errorf("usagecache: negative removal delay %v", config.RemovalDelay)
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	metrics, err := newCacheMetrics(config.Registerer, config.Name)
	if err != nil {
		return nil, err
	}

	sweepContext, cancel := context.WithCancel(ctx)
	cache := &Cache[K, V]{
		name:       config.Name,
		delay:      config.RemovalDelay,
		clock:      config.Clock,
		logger:     config.Logger.With("cache", config.Name),
		metrics:    metrics,
		entries:    make(map[K]*entry[V]),
		cancel:     cancel,
		sweepDone:  make(chan struct{}),
		afterSweep: config.afterSweep,
	}
	go cache.sweepLoop(sweepContext, max(config.RemovalDelay/10, minSweepInterval))
	return cache, nil
}

// WithValue runs block with the value for key, creating it with
// factory if the cache holds none. The entry is marked in use for the
// duration of block and cannot be evicted until block returns or
// panics.
//
// factory runs with the cache lock held, so it must not call back into
// the cache. If factory fails, no entry is created and its error is
// returned. The error returned by block is returned unchanged.
func (c *Cache[K, V]) WithValue(key K, factory func(K) (V, error), block func(V) error) error {
	current, err := c.acquire(key, factory)
	if err != nil {
		return err
	}
	defer c.release(current)
	return block(current.value)
}

func (c *Cache[K, V]) acquire(key K, factory func(K) (V, error)) (*entry[V], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	current, ok := c.entries[key]
	if !ok {
		value, err := factory(key)
		if err != nil {
			return nil, err
		}
		current = &entry[V]{value: value}
		c.entries[key] = current
		c.metrics.recordCreated(len(c.entries))
	}
	current.refs++
	current.lastUsed = c.clock.Now()
	return current, nil
}

func (c *Cache[K, V]) release(current *entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	current.refs--
	current.lastUsed = c.clock.Now()
}

// RemoveAllUnused runs one sweep pass synchronously: every entry that
// is not in use and has been idle for at least the removal delay is
// removed.
func (c *Cache[K, V]) RemoveAllUnused() {
	now := c.clock.Now()
	c.removeWhere(func(current *entry[V]) bool {
		return now.Sub(current.lastUsed) >= c.delay
	})
}

// Purge removes every entry that is not in use, regardless of how long
// it has been idle.
func (c *Cache[K, V]) Purge() {
	c.removeWhere(func(*entry[V]) bool { return true })
}

// Len returns the number of entries, in use or idle.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the sweep goroutine, rejects further WithValue calls,
// and purges unused entries. Entries still in use when Close returns
// stay in the cache until their blocks finish and are never closed by
// the cache. Close is idempotent.
func (c *Cache[K, V]) Close() {
	c.cancel()
	<-c.sweepDone

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.Purge()
}

// removeWhere removes unused entries matching eligible and closes the
// removed values outside the lock.
func (c *Cache[K, V]) removeWhere(eligible func(*entry[V]) bool) {
	var removed []V

	c.mu.Lock()
	for key, current := range c.entries {
		if current.refs > 0 || !eligible(current) {
			continue
		}
		delete(c.entries, key)
		removed = append(removed, current.value)
	}
	size := len(c.entries)
	if len(removed) > 0 {
		c.metrics.recordEvicted(len(removed), size)
	}
	c.mu.Unlock()

	if len(removed) == 0 {
		return
	}
	c.logger.Debug("removed unused cache entries", "count", len(removed), "remaining", size)

	for _, value := range removed {
		closer, ok := any(value).(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			c.logger.Warn("closing evicted cache value failed", "error", err)
		}
	}
}

func (c *Cache[K, V]) sweepLoop(ctx context.Context, interval time.Duration) {
	defer close(c.sweepDone)

	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RemoveAllUnused()
			if c.afterSweep != nil {
				c.afterSweep()
			}
		}
	}
}
