// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package server owns piper's listening socket and its accept loop.
//
// [Server] binds a TCP address with SO_REUSEADDR and an explicit
// backlog, or adopts a listener inherited through systemd socket
// activation (see [Inherited]). Connections are served strictly one at
// a time: the loop accepts, runs the session to completion, and only
// then accepts again. Further clients wait in the kernel's backlog.
//
// Start returns once the socket is listening and tells systemd the
// service is ready (a no-op outside systemd). Stop cancels the loop,
// which interrupts any session in progress, closes the socket, and
// waits for the loop to exit. Addr returns the bound address, which
// carries the real port when port 0 was requested.
package server
