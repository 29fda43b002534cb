// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// ErrNotLoopback is returned for listen addresses reachable from other
// hosts.
var ErrNotLoopback = errors.New("address is not a loopback address")

// ValidateLoopbackAddress checks that address is a host:port pair
// whose host is "localhost" or a loopback IP. The port may be empty or
// zero to request an ephemeral port.
func ValidateLoopbackAddress(address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", address, err)
	}
	if host == "localhost" {
		return nil
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", address, ErrNotLoopback)
	}
	if !ip.IsLoopback() {
		return fmt.Errorf("listen address %q: %w", address, ErrNotLoopback)
	}
	return nil
}
