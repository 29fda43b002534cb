// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/procinv/lib/catalog"
	"github.com/bureau-foundation/procinv/lib/clock"
	"github.com/bureau-foundation/procinv/lib/netutil"
)

// Config configures a Server.
type Config struct {
	// ServerDescription is sent to clients with every response.
	ServerDescription string

	// IdleEvictionDelay is how long the inventory of a device is kept
	// after the last connection using it has finished. Zero selects
	// catalog.DefaultIdleTimeout.
	IdleEvictionDelay time.Duration

	// Clock drives idle eviction. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Registerer receives server and device cache metrics. Nil
	// disables metric export.
	Registerer prometheus.Registerer
}

// Server accepts inventory connections. A Server may be started more
// than once; each Instance holds its own, independent inventory.
type Server struct {
	config  Config
	logger  *slog.Logger
	metrics *serverMetrics
}

// NewServer validates config and registers the server metrics.
func NewServer(config Config) (*Server, error) {
	if config.IdleEvictionDelay < 0 {
		return nil, fmt.Errorf("negative idle eviction delay %v", config.IdleEvictionDelay)
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	metrics, err := newServerMetrics(config.Registerer)
	if err != nil {
		return nil, err
	}
	return &Server{config: config, logger: config.Logger, metrics: metrics}, nil
}

// Listen binds address, which must be a loopback address, and starts
// serving on it.
func (s *Server) Listen(ctx context.Context, address string) (*Instance, error) {
	if err := netutil.ValidateLoopbackAddress(address); err != nil {
		return nil, err
	}
	var listenConfig net.ListenConfig
	listener, err := listenConfig.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", address, err)
	}
	instance, err := s.Start(ctx, listener)
	if err != nil {
		listener.Close()
		return nil, err
	}
	return instance, nil
}

// Start serves connections from listener until ctx is cancelled or
// the returned Instance is closed. The instance owns listener.
//
// Only the first Instance started on a Server may export device cache
// metrics; later instances fail to register them.
func (s *Server) Start(ctx context.Context, listener net.Listener) (*Instance, error) {
	scope, cancel := context.WithCancel(ctx)

	directory, err := catalog.NewDirectory(scope, catalog.DirectoryConfig{
		IdleTimeout: s.config.IdleEvictionDelay,
		Clock:       s.config.Clock,
		Logger:      s.logger,
		Registerer:  s.config.Registerer,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating device directory: %w", err)
	}

	instance := &Instance{
		server:     s,
		listener:   listener,
		directory:  directory,
		cancel:     cancel,
		acceptDone: make(chan struct{}),
	}

	// Unblock Accept when the scope ends.
	context.AfterFunc(scope, func() { listener.Close() })

	s.logger.Info("inventory server listening",
		"address", listener.Addr().String(),
		"description", s.config.ServerDescription,
	)
	go instance.acceptLoop(scope)
	return instance, nil
}

// Instance is a running server.
type Instance struct {
	server    *Server
	listener  net.Listener
	directory *catalog.Directory
	cancel    context.CancelFunc

	// connections tracks in-flight connection handlers for shutdown.
	connections sync.WaitGroup

	acceptDone chan struct{}
	acceptErr  error

	closeOnce sync.Once
}

// Addr returns the address the instance accepts connections on.
func (i *Instance) Addr() net.Addr {
	return i.listener.Addr()
}

func (i *Instance) acceptLoop(ctx context.Context) {
	defer close(i.acceptDone)
	logger := i.server.logger

	for {
		conn, err := i.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			// New connections cannot be served any more; existing
			// ones keep running until Close.
			logger.Error("accept failed, inventory server stopped accepting", "error", err)
			i.acceptErr = fmt.Errorf("accepting connections: %w", err)
			return
		}

		i.connections.Add(1)
		go func() {
			defer i.connections.Done()
			defer conn.Close()
			handler := newConnectionHandler(conn, i.directory, i.server.metrics, logger, i.server.config.ServerDescription)
			handler.serve(ctx)
		}()
	}
}

// Wait blocks until the instance stops accepting connections, either
// because it was closed, its context was cancelled, or Accept failed.
// It returns the Accept failure, if any.
func (i *Instance) Wait() error {
	<-i.acceptDone
	return i.acceptErr
}

// Close stops accepting, cancels every open connection, waits for
// their handlers to finish, and releases the inventory. Close is
// idempotent.
func (i *Instance) Close() {
	i.closeOnce.Do(func() {
		i.cancel()
		i.listener.Close()
		<-i.acceptDone
		i.connections.Wait()
		i.directory.Close()
		i.server.logger.Info("inventory server closed", "address", i.listener.Addr().String())
	})
}
