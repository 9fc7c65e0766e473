// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
)

// Set via -ldflags at build time.
var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// Info returns the string printed by --version, for example
// "0.1.0-dev (abc1234-dirty, 2026-10-16T09:00:00Z)".
func Info() string {
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, dirty, BuildTime)
}

// Full returns Info plus the Go toolchain and platform, which is what
// piper-server logs at startup.
func Full() string {
	return fmt.Sprintf("%s go=%s platform=%s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
