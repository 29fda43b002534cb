// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
)

func TestIsTransportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"wrapped eof", fmt.Errorf("reading request: %w", io.EOF), true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"closed", net.ErrClosed, true},
		{"reset", &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, true},
		{"broken pipe", &net.OpError{Op: "write", Err: os.NewSyscallError("write", syscall.EPIPE)}, true},
		{"deadline", fmt.Errorf("writing response: %w", os.ErrDeadlineExceeded), true},
		{"refused", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, false},
		{"other", errors.New("decoding update: bad pid"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsTransportError(test.err); got != test.want {
				t.Errorf("IsTransportError(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}

func TestIsTimeoutOnlyForDeadlines(t *testing.T) {
	if IsTimeout(io.EOF) {
		t.Error("IsTimeout(io.EOF) = true, want false")
	}
	if !IsTimeout(os.ErrDeadlineExceeded) {
		t.Error("IsTimeout(os.ErrDeadlineExceeded) = false, want true")
	}
}
