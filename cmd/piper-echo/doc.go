// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Piper-echo is a line-oriented test program for piper-server sessions.
// It acknowledges every line read from stdin on stdout and appends the
// line to a file, stopping at EOF or after a line beginning with "exit".
package main
