// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package intake implements the two handshake steps that precede the
// byte bridge: the server greeting and the command line.
//
// The greeting is the connection time in C ctime layout (24 characters),
// a newline and a single NUL byte. The command line is read until its
// '\n' terminator, however many TCP segments it arrives in, and is split
// on whitespace into an argument vector. An empty vector is rejected.
// Anything the client sent after the terminator is returned to the
// caller so that it can be forwarded to the child's stdin instead of
// being dropped.
package intake
