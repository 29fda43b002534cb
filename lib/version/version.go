// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
)

// These variables are set via -ldflags at build time, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/procinv/lib/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty indicates whether there were uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version. This is set manually for releases.
	Version = "0.1.0-dev"
)

// Info returns a formatted version string suitable for --version output.
func Info() string {
	return fmt.Sprintf("%s (%s, %s)", Version, commit(), BuildTime)
}

// Full returns detailed version information including Go version.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Print writes "<binary> <Info()>" to stdout. This is the --version
// output of every binary.
func Print(binary string) {
	fmt.Printf("%s %s\n", binary, Info())
}

// Description returns "<who> (<binary>/<version>+<commit>)", the peer
// description sent over the wire. An empty who yields just the
// parenthesized build.
func Description(who, binary string) string {
	build := fmt.Sprintf("%s/%s+%s", binary, Version, commit())
	if who == "" {
		return build
	}
	return fmt.Sprintf("%s (%s)", who, build)
}

// commit returns GitCommit with a -dirty suffix for builds from a
// modified tree.
func commit() string {
	if GitDirty == "true" {
		return GitCommit + "-dirty"
	}
	return GitCommit
}
