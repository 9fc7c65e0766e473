// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package spawn starts the per-session child process with its standard
// streams redirected to pipes owned by the server.
//
// Three pipes are created close-on-exec: stdin (server writes, child
// reads), stdout and stderr (child writes, server reads). fork/exec
// duplicates the child's ends onto descriptors 0, 1 and 2; every other
// pipe descriptor disappears at exec because of close-on-exec. Before
// Spawn returns, the parent closes its copies of the child's ends. That
// ownership discipline is what makes the server see end-of-stream on
// stdout and stderr when the child exits, and what lets the child see
// end-of-stream on stdin when the server closes its end.
//
// The parent keeps the stdin write end (non-blocking, so a child that
// stops reading cannot stall the server) and the stdout and stderr read
// ends (blocking; the bridge only reads them after poll reports them
// ready).
//
// Go's fork/exec reports an exec failure to the parent synchronously,
// so a missing or non-executable program is a Spawn error rather than
// an empty child.
package spawn
