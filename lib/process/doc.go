// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers shared by the piper
// binaries: reporting an unrecoverable startup error before (or instead
// of) the structured logger, and exiting with a conventional status.
package process
