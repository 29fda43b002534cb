// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package usagecache

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// cacheMetrics is nil when no registerer is configured; every method
// is a no-op on a nil receiver.
type cacheMetrics struct {
	entries prometheus.Gauge
	created prometheus.Counter
	evicted prometheus.Counter
}

func newCacheMetrics(registerer prometheus.Registerer, name string) (*cacheMetrics, error) {
	if registerer == nil {
		return nil, nil
	}

	labels := prometheus.Labels{"cache": name}
	m := &cacheMetrics{
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "procinv",
			Subsystem:   "usagecache",
			Name:        "entries",
			ConstLabels: labels,
			Help:        "Current number of entries in the cache, in use or idle.",
		}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "procinv",
			Subsystem:   "usagecache",
			Name:        "created_total",
			ConstLabels: labels,
			Help:        "Total number of values created by the cache factory.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "procinv",
			Subsystem:   "usagecache",
			Name:        "evicted_total",
			ConstLabels: labels,
			Help:        "Total number of entries removed from the cache.",
		}),
	}

	for _, collector := range []prometheus.Collector{m.entries, m.created, m.evicted} {
		if err := registerer.Register(collector); err != nil {
			return nil, fmt.Errorf("registering metrics for cache %q: %w", name, err)
		}
	}
	return m, nil
}

func (m *cacheMetrics) recordCreated(size int) {
	if m == nil {
		return
	}
	m.created.Inc()
	m.entries.Set(float64(size))
}

func (m *cacheMetrics) recordEvicted(count, size int) {
	if m == nil {
		return
	}
	m.evicted.Add(float64(count))
	m.entries.Set(float64(size))
}
