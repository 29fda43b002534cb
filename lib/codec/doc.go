// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR configuration shared by the process
// inventory server and its clients.
//
// Every request and response on an inventory connection is a single
// CBOR data item. CBOR items are self-delimiting, so a stream of
// responses needs no extra length prefix: the decoder reads exactly one
// item per Decode call.
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// # Struct Tag Rules
//
// Types that are only ever sent on the wire use `cbor` tags. Types that
// are also printed as JSON by command-line tools (process records,
// diffs) use `json` tags; fxamacker/cbor reads `json` tags when no
// `cbor` tag is present. Never put both tags on the same field.
//
// Optional attributes are pointer fields with omitempty: a nil pointer
// is absent on the wire, a non-nil pointer to a zero value is present.
// This is what lets a partial update leave previously stored
// attributes untouched.
package codec
