// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/procinv/lib/inventory"
)

// RequestKind selects the operation of a request.
type RequestKind string

const (
	// KindTrackDevice opens a stream of inventory diffs for a device.
	KindTrackDevice RequestKind = "track_device"

	// KindUpdateDevice applies an update batch to a device.
	KindUpdateDevice RequestKind = "update_device"
)

// Request is the single message a client sends on a connection.
type Request struct {
	Kind RequestKind `cbor:"kind"`

	// ClientDescription is free text identifying the client in server
	// logs.
	ClientDescription string `cbor:"client_description,omitempty"`

	Device inventory.DeviceID `cbor:"device"`

	// Updates is the batch applied by update_device requests. It is
	// applied in order and atomically.
	Updates []inventory.Update `cbor:"updates,omitempty"`
}

// Response is one message written by the server. A success response
// has OK set; for track_device streams it carries a Diff, for
// update_device acknowledgements it carries nothing. A failure
// response has OK unset and an Error message, and is always the last
// response on its connection.
type Response struct {
	OK bool `cbor:"ok"`

	// ServerDescription is free text identifying the server.
	ServerDescription string `cbor:"server_description,omitempty"`

	Error string          `cbor:"error,omitempty"`
	Diff  *inventory.Diff `cbor:"diff,omitempty"`
}

// readTimeout is how long the server waits for the client to send its
// request. A well-behaved client sends it immediately after
// connecting.
const readTimeout = 30 * time.Second

// writeTimeout bounds each response write.
const writeTimeout = 10 * time.Second

// lingerTimeout is how long the server waits for the client to close
// its side after the server has finished writing.
const lingerTimeout = 5 * time.Second

// maxRequestSize is the maximum size of a single CBOR request. A batch
// of a few thousand process records fits comfortably.
const maxRequestSize = 1024 * 1024

// errUnsupportedKind reports a request kind the server does not
// handle.
var errUnsupportedKind = errors.New("unsupported request kind")

// protocolError is a fault caused by the content of a request. It is
// reported to the client and logged at low severity.
type protocolError struct {
	err error
}

func (e *protocolError) Error() string { return e.err.Error() }

func (e *protocolError) Unwrap() error { return e.err }

func protocolErrorf(format string, args ...any) error {
	return &protocolError{err: fmt.Errorf(format, args...)}
}

// validate checks the fields every request kind needs.
func (r *Request) validate() error {
	switch r.Kind {
	case KindTrackDevice, KindUpdateDevice:
	default:
		return &protocolError{err: fmt.Errorf("%w %q", errUnsupportedKind, r.Kind)}
	}
	if err := r.Device.Validate(); err != nil {
		return &protocolError{err: err}
	}
	if r.Kind == KindUpdateDevice {
		if err := inventory.ValidateBatch(r.Updates); err != nil {
			return &protocolError{err: err}
		}
	}
	return nil
}
