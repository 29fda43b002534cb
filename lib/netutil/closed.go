// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies connection errors and validates listen
// addresses.
//
// Inventory clients connect, send one request and may disappear at any
// moment afterwards. Errors caused by that (EOF, reset, broken pipe,
// deadlines) are part of normal operation and are logged at low
// severity; everything else indicates a bug.
package netutil

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

// IsExpectedCloseError reports whether err is a normal connection
// termination: EOF, closed connection, broken pipe, or connection
// reset.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET || errno == syscall.ECONNABORTED
	}
	return false
}

// IsTimeout reports whether err is an I/O deadline expiry.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsTransportError reports whether err is a benign transport fault:
// an expected close or a timeout.
func IsTransportError(err error) bool {
	return IsExpectedCloseError(err) || IsTimeout(err)
}
