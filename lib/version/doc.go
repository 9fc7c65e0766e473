// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the piper binaries.
//
// GitCommit, GitDirty, BuildTime and Version are injected with -ldflags:
//
//	go build -ldflags "-X github.com/bureau-foundation/piper/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/...
//
// Unset values read "unknown" (and "0.1.0-dev" for Version), which is
// what test runs and plain go build produce.
package version
