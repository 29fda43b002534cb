// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for the inventory
// binaries. [Fatal] reports an error from run() to stderr when the
// structured logger may not exist yet, and exits.
//
// Apart from lib/version and the client CLI's own output, this is the
// only place that writes to stdio directly.
package process
