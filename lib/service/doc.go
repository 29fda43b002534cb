// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service serves the process inventory over loopback TCP.
//
// Every request uses a new connection. The client writes one CBOR
// [Request]; the server answers with one or more CBOR [Response]
// values and then shuts the connection down. CBOR is self-delimiting
// so no framing protocol is needed.
//
// Two request kinds exist:
//
//   - track_device subscribes to the inventory of one device. The
//     server writes a response carrying the whole current inventory,
//     then one response per observable change, until the client closes
//     its side of the connection or the server shuts down. Clients
//     must keep their write side open for as long as they want the
//     stream.
//   - update_device applies a batch of updates to the inventory of one
//     device and answers with a single empty success response.
//
// Anything else, malformed requests, and failures while handling a
// request are answered with a single error response before the
// connection is closed.
//
// [Server] carries the configuration; [Server.Start] binds it to a
// listener and returns the running [Instance]. Closing the instance
// cancels every open connection and releases all device state. The
// inventory is not persisted across instances.
//
// [Client] is the Go client for both request kinds.
package service
