// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds the small connection helpers shared by the
// piper server and client.
//
// [IsExpectedCloseError] classifies the errors that show up during a
// normal teardown (EOF, closed connection, broken pipe, reset), so that
// callers can log them at debug instead of as failures.
//
// [Pump] relays a connection to a local reader/writer pair with
// optional half-close. The terminal client uses it to mirror the console
// onto the session socket.
package netutil
