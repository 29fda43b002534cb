// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"testing"
)

func TestValidateLoopbackAddress(t *testing.T) {
	tests := []struct {
		address     string
		wantErr     bool
		notLoopback bool
	}{
		{address: "127.0.0.1:0"},
		{address: "127.0.0.1:8600"},
		{address: "127.3.2.1:8600"},
		{address: "[::1]:0"},
		{address: "localhost:9000"},
		{address: "0.0.0.0:8600", wantErr: true, notLoopback: true},
		{address: "192.168.1.10:8600", wantErr: true, notLoopback: true},
		{address: "[::]:8600", wantErr: true, notLoopback: true},
		{address: "example.com:80", wantErr: true, notLoopback: true},
		{address: ":8600", wantErr: true, notLoopback: true},
		{address: "127.0.0.1", wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.address, func(t *testing.T) {
			err := ValidateLoopbackAddress(test.address)
			if (err != nil) != test.wantErr {
				t.Fatalf("ValidateLoopbackAddress(%q) = %v, wantErr %v", test.address, err, test.wantErr)
			}
			if test.notLoopback && !errors.Is(err, ErrNotLoopback) {
				t.Errorf("error %v does not wrap ErrNotLoopback", err)
			}
		})
	}
}
