// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Failure classes used as the "class" label of failures_total.
const (
	failureTransport  = "transport"
	failureProtocol   = "protocol"
	failureUnexpected = "unexpected"
)

// serverMetrics are always collected; they are exported only when a
// registerer is configured.
type serverMetrics struct {
	connections       *prometheus.CounterVec
	activeConnections prometheus.Gauge
	failures          *prometheus.CounterVec
}

func newServerMetrics(registerer prometheus.Registerer) (*serverMetrics, error) {
	m := &serverMetrics{
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procinv",
			Subsystem: "service",
			Name:      "connections_total",
			Help:      "Total number of handled connections by request kind.",
		}, []string{"kind"}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "procinv",
			Subsystem: "service",
			Name:      "active_connections",
			Help:      "Number of connections currently being handled.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procinv",
			Subsystem: "service",
			Name:      "failures_total",
			Help:      "Total number of failed requests by failure class.",
		}, []string{"class"}),
	}

	if registerer == nil {
		return m, nil
	}
	for _, collector := range []prometheus.Collector{m.connections, m.activeConnections, m.failures} {
		if err := registerer.Register(collector); err != nil {
			return nil, fmt.Errorf("registering service metrics: %w", err)
		}
	}
	return m, nil
}
