// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Procinv is the command-line client of the process inventory server.
//
//	procinv track emulator-5554
//	procinv update --file records.jsonl emulator-5554
//	procinv terminate emulator-5554 1234
//
// track prints the whole inventory of a device as one JSON diff line
// and then one line per change until interrupted; with --snapshot it
// prints the whole inventory after every change instead. update reads JSON
// update records, each with exactly one of "terminated_pid",
// "process" or "proxy" set, and applies them as one batch.
//
// The server address comes from --address, then client.address and
// server.listen_address in the configuration (see lib/config).
package main
