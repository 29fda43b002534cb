// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Procinv-server serves the process inventory of attached devices to
// local clients over loopback TCP.
//
// Configuration is resolved by lib/config (defaults, the file named by
// --config or PROCINV_CONFIG, then PROCINV_* variables); --listen and
// --metrics-address override the result. When a metrics address is
// set, Prometheus metrics for the server, the device cache, and the Go
// runtime are served at /metrics on it.
//
// The process runs until SIGINT or SIGTERM, or until the metrics
// endpoint fails. Inventory is held in memory only.
package main
