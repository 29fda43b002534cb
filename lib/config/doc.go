// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the inventory
// server and its clients.
//
// Values are resolved in four layers, each overriding the previous:
//
//  1. [Default] values.
//  2. The YAML file named by the PROCINV_CONFIG environment variable
//     or a --config flag (via [LoadFile]). The file is optional: the
//     inventory server is usually embedded in a host process that
//     configures it through the environment alone.
//  3. The environment-specific section of the file (development,
//     staging, production) matching [Config].Environment.
//  4. PROCINV_* environment variables.
//
// Variable expansion is performed on the description strings after
// loading: ${HOSTNAME}, ${USER}, and ${VAR:-default} patterns are
// expanded.
//
// Key exports:
//
//   - [Config] -- master struct with Server, Client, and Log sections
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends only on lib/netutil.
package config
