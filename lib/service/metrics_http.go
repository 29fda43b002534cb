// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bureau-foundation/procinv/lib/netutil"
)

// metricsShutdownTimeout bounds how long Serve waits for in-flight
// scrapes on shutdown.
const metricsShutdownTimeout = 5 * time.Second

// MetricsServer exposes a Prometheus registry over HTTP at /metrics.
// Like the inventory server it only binds loopback addresses.
type MetricsServer struct {
	address  string
	gatherer prometheus.Gatherer
	logger   *slog.Logger

	// ready is closed once the listener is bound.
	ready chan struct{}

	// addr is the resolved listen address, valid after ready is
	// closed.
	addr net.Addr
}

// NewMetricsServer returns a server for gatherer on address. Call
// Serve to start it.
func NewMetricsServer(address string, gatherer prometheus.Gatherer, logger *slog.Logger) *MetricsServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetricsServer{
		address:  address,
		gatherer: gatherer,
		logger:   logger,
		ready:    make(chan struct{}),
	}
}

// Ready returns a channel that is closed once the server is bound.
func (s *MetricsServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the resolved listen address. Only valid after Ready()
// is closed.
func (s *MetricsServer) Addr() net.Addr {
	return s.addr
}

// Serve binds the listener and serves scrapes until ctx is cancelled,
// then shuts down gracefully.
func (s *MetricsServer) Serve(ctx context.Context) error {
	if err := netutil.ValidateLoopbackAddress(s.address); err != nil {
		return err
	}
	var listenConfig net.ListenConfig
	listener, err := listenConfig.Listen(ctx, "tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	s.logger.Info("metrics server listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveDone:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving metrics: %w", err)
	}

	shutdownContext, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownContext); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	s.logger.Info("metrics server stopped")
	return nil
}
