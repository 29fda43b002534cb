// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/procinv/lib/codec"
	"github.com/bureau-foundation/procinv/lib/inventory"
)

// dialTimeout is the maximum time to wait for a connection to the
// server. It covers only the connect phase.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long UpdateDevice waits for the
// acknowledgement. Matched to the server's readTimeout + writeTimeout.
const responseReadTimeout = 45 * time.Second

// maxResponseSize bounds a single update_device acknowledgement.
const maxResponseSize = 1024 * 1024

// ServiceError is returned when the server answers with an error
// response.
type ServiceError struct {
	Kind    RequestKind
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("inventory service error on %q: %s", e.Kind, e.Message)
}

// Client talks to an inventory server. Every call uses a new
// connection. A Client is safe for concurrent use.
type Client struct {
	address     string
	description string
}

// NewClient returns a client for the server at address. description
// identifies the client in server logs.
func NewClient(address, description string) *Client {
	return &Client{address: address, description: description}
}

// UpdateDevice applies updates to the inventory of device and waits
// for the acknowledgement.
func (c *Client) UpdateDevice(ctx context.Context, device inventory.DeviceID, updates []inventory.Update) error {
	conn, err := c.open(ctx, KindUpdateDevice, device, updates)
	if err != nil {
		return err
	}
	defer conn.Close()

	// The acknowledgement is the only response, so the write side can
	// go right away.
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.CloseWrite()
	}

	deadline := time.Now().Add(responseReadTimeout)
	if contextDeadline, ok := ctx.Deadline(); ok && contextDeadline.Before(deadline) {
		deadline = contextDeadline
	}
	conn.SetReadDeadline(deadline)

	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return fmt.Errorf("reading %s response from %s: %w", KindUpdateDevice, c.address, err)
	}
	if !response.OK {
		return &ServiceError{Kind: KindUpdateDevice, Message: response.Error}
	}
	return nil
}

// SendProcessInfo merges info into the inventory of device.
func (c *Client) SendProcessInfo(ctx context.Context, device inventory.DeviceID, info inventory.ProcessInfo) error {
	return c.UpdateDevice(ctx, device, []inventory.Update{inventory.ProcessUpdated(info)})
}

// SendProxyInfo merges info into the proxy inventory of device.
func (c *Client) SendProxyInfo(ctx context.Context, device inventory.DeviceID, info inventory.ProxyInfo) error {
	return c.UpdateDevice(ctx, device, []inventory.Update{inventory.ProxyUpdated(info)})
}

// SendProcessRemoval removes the process and proxy records of pid.
func (c *Client) SendProcessRemoval(ctx context.Context, device inventory.DeviceID, pid int32) error {
	return c.UpdateDevice(ctx, device, []inventory.Update{inventory.Terminated(pid)})
}

// TrackDevice subscribes to the inventory of device and calls fn with
// every diff, starting with the diff announcing the whole current
// inventory. It returns nil when ctx is cancelled, the error of fn
// unchanged, a *ServiceError when the server reports a failure, or
// the connection failure.
func (c *Client) TrackDevice(ctx context.Context, device inventory.DeviceID, fn func(inventory.Diff) error) error {
	conn, err := c.open(ctx, KindTrackDevice, device, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// The write side stays open: closing it ends the stream.
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	decoder := codec.NewDecoder(conn)
	for {
		var response Response
		if err := decoder.Decode(&response); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%s stream from %s ended by server: %w", KindTrackDevice, c.address, io.ErrUnexpectedEOF)
			}
			return fmt.Errorf("reading %s response from %s: %w", KindTrackDevice, c.address, err)
		}
		if !response.OK {
			return &ServiceError{Kind: KindTrackDevice, Message: response.Error}
		}
		if response.Diff == nil {
			return fmt.Errorf("%s response from %s carries no diff", KindTrackDevice, c.address)
		}
		if err := fn(*response.Diff); err != nil {
			return err
		}
	}
}

// open connects and writes the request.
func (c *Client) open(ctx context.Context, kind RequestKind, device inventory.DeviceID, updates []inventory.Update) (net.Conn, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", c.address, err)
	}

	request := Request{
		Kind:              kind,
		ClientDescription: c.description,
		Device:            device,
		Updates:           updates,
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		conn.Close()
		return nil, fmt.Errorf("writing %s request to %s: %w", kind, c.address, err)
	}
	conn.SetWriteDeadline(time.Time{})
	return conn, nil
}
