// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/procinv/lib/catalog"
	"github.com/bureau-foundation/procinv/lib/codec"
	"github.com/bureau-foundation/procinv/lib/inventory"
	"github.com/bureau-foundation/procinv/lib/netutil"
)

// connectionHandler serves the single request of one connection. It
// never closes the connection; the accept loop does.
type connectionHandler struct {
	conn      net.Conn
	directory *catalog.Directory
	metrics   *serverMetrics
	logger    *slog.Logger

	serverDescription string

	// writeTimeout bounds each response write; lingerTimeout bounds
	// the wait for the peer during shutdown.
	writeTimeout  time.Duration
	lingerTimeout time.Duration

	// writeBroken is set once a write has failed. A failed write may
	// have left part of a response on the wire, so nothing more is
	// written after it.
	writeBroken bool

	// peerGone is closed once the peer has closed its side of the
	// connection, the connection failed, or the linger deadline
	// expired. Nil until the request has been read.
	peerGone chan struct{}
}

func newConnectionHandler(conn net.Conn, directory *catalog.Directory, metrics *serverMetrics, logger *slog.Logger, serverDescription string) *connectionHandler {
	return &connectionHandler{
		conn:      conn,
		directory: directory,
		metrics:   metrics,
		logger: logger.With(
			"connection", uuid.NewString(),
			"remote", conn.RemoteAddr().String(),
		),
		serverDescription: serverDescription,
		writeTimeout:      writeTimeout,
		lingerTimeout:     lingerTimeout,
	}
}

// serve reads the request, dispatches it, reports a failure to the
// client if one occurred, and shuts down the write side. It returns
// the failure, or ctx.Err() when the server is shutting down; in the
// latter case nothing more is written.
func (h *connectionHandler) serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, h.interrupt)
	defer stop()

	h.metrics.activeConnections.Inc()
	defer h.metrics.activeConnections.Dec()

	var kind RequestKind
	err := h.protect(func() error {
		request, err := h.readRequest()
		if request != nil {
			kind = request.Kind
		}
		if err != nil {
			return err
		}
		return h.dispatch(ctx, request)
	})

	if ctx.Err() != nil {
		h.logger.Debug("connection cancelled by server shutdown", "kind", kind)
		return ctx.Err()
	}

	if err != nil {
		h.reportFailure(kind, err)
		if h.peerGone == nil {
			// The request was never read completely, so nobody is
			// waiting for an orderly shutdown.
			return err
		}
	}
	h.shutdown(ctx)
	return err
}

// protect runs fn, converting a panic into an error.
func (h *connectionHandler) protect(fn func() error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &panicError{value: recovered}
		}
	}()
	return fn()
}

// errWriteBroken is returned by write after an earlier write failed.
var errWriteBroken = errors.New("connection unusable after a failed write")

type panicError struct {
	value any
}

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.value) }

// interrupt unblocks every pending read and write on the connection.
func (h *connectionHandler) interrupt() {
	h.conn.SetDeadline(time.Unix(1, 0))
}

// readRequest decodes the request and starts watching for the peer to
// close its side.
func (h *connectionHandler) readRequest() (*Request, error) {
	h.conn.SetReadDeadline(time.Now().Add(readTimeout))

	var request Request
	// The limit prevents a client from exhausting memory.
	limited := &io.LimitedReader{R: h.conn, N: maxRequestSize}
	err := codec.NewDecoder(limited).Decode(&request)
	if err != nil {
		if limited.N <= 0 {
			// Drain the rest of the request so that closing the
			// connection does not reset it before the error arrives.
			h.watchPeer()
			return nil, protocolErrorf("request exceeds %d bytes", maxRequestSize)
		}
		if netutil.IsTransportError(err) {
			return nil, fmt.Errorf("reading request: %w", err)
		}
		h.watchPeer()
		return nil, protocolErrorf("invalid request: %v", err)
	}

	// Streams last as long as the client wants them.
	h.conn.SetReadDeadline(time.Time{})
	h.watchPeer()

	h.logger.Debug("request received",
		"kind", request.Kind,
		"device", request.Device.String(),
		"client", request.ClientDescription,
		"updates", len(request.Updates),
	)
	if err := request.validate(); err != nil {
		return &request, err
	}
	return &request, nil
}

// watchPeer discards anything the client sends after its request and
// closes peerGone when the client closes its side.
func (h *connectionHandler) watchPeer() {
	peerGone := make(chan struct{})
	h.peerGone = peerGone
	go func() {
		defer close(peerGone)
		io.Copy(io.Discard, h.conn)
	}()
}

func (h *connectionHandler) dispatch(ctx context.Context, request *Request) error {
	h.metrics.connections.WithLabelValues(string(request.Kind)).Inc()

	switch request.Kind {
	case KindTrackDevice:
		return h.trackDevice(ctx, request.Device)
	case KindUpdateDevice:
		return h.updateDevice(request.Device, request.Updates)
	}
	// validate rejects every other kind.
	return &protocolError{err: fmt.Errorf("%w %q", errUnsupportedKind, request.Kind)}
}

// trackDevice streams diffs of the device inventory until the client
// closes its side, the server shuts down, or a write fails. The
// catalog is kept alive for the whole stream.
func (h *connectionHandler) trackDevice(ctx context.Context, device inventory.DeviceID) error {
	streamContext, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-h.peerGone:
			cancel()
		case <-streamContext.Done():
		}
	}()

	err := h.directory.WithCatalog(device, func(deviceCatalog *catalog.Catalog) error {
		return deviceCatalog.Track(streamContext, func(diff inventory.Diff) error {
			return h.write(Response{OK: true, Diff: &diff})
		})
	})
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		h.logger.Debug("tracking client went away", "device", device.String())
		return nil
	}
	return err
}

func (h *connectionHandler) updateDevice(device inventory.DeviceID, updates []inventory.Update) error {
	err := h.directory.WithCatalog(device, func(deviceCatalog *catalog.Catalog) error {
		return deviceCatalog.Apply(updates)
	})
	if err != nil {
		if errors.Is(err, inventory.ErrInvalidUpdate) {
			return &protocolError{err: err}
		}
		return err
	}
	return h.write(Response{OK: true})
}

func (h *connectionHandler) write(response Response) error {
	if h.writeBroken {
		return errWriteBroken
	}
	response.ServerDescription = h.serverDescription
	h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	if err := codec.NewEncoder(h.conn).Encode(response); err != nil {
		h.writeBroken = true
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}

// reportFailure logs err according to its class and makes a
// best-effort attempt to tell the client.
func (h *connectionHandler) reportFailure(kind RequestKind, err error) {
	label := string(kind)
	if label == "" {
		label = "unknown"
	}

	var protocolFault *protocolError
	switch {
	case errors.As(err, &protocolFault):
		h.metrics.failures.WithLabelValues(failureProtocol).Inc()
		h.logger.Info("rejected request", "kind", label, "error", err)
	case netutil.IsTransportError(err):
		h.metrics.failures.WithLabelValues(failureTransport).Inc()
		h.logger.Debug("connection failed", "kind", label, "error", err)
	default:
		h.metrics.failures.WithLabelValues(failureUnexpected).Inc()
		h.logger.Error("request failed unexpectedly", "kind", label, "error", err)
	}

	if h.writeBroken {
		h.logger.Debug("not reporting failure after a failed write", "kind", label)
		return
	}
	message := fmt.Sprintf("%s request failed: %v", label, err)
	if writeErr := h.write(Response{Error: message}); writeErr != nil {
		h.logger.Debug("failed to write error response", "error", writeErr)
	}
}

// shutdown closes the write side and waits for the client to close
// its side, bounded by lingerTimeout, or cut short when ctx ends.
func (h *connectionHandler) shutdown(ctx context.Context) {
	if halfCloser, ok := h.conn.(interface{ CloseWrite() error }); ok {
		if err := halfCloser.CloseWrite(); err != nil {
			h.logger.Debug("half-close failed", "error", err)
			return
		}
	}
	h.conn.SetReadDeadline(time.Now().Add(h.lingerTimeout))
	// The linger deadline may have replaced the one set by interrupt.
	if ctx.Err() != nil {
		h.interrupt()
	}
	<-h.peerGone
}
