// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Piper is the interactive client for piper-server. It connects (retrying
// while the server comes up), prints the server's greeting, optionally
// sends a command line given with --command, and then mirrors the
// console onto the connection until the server closes it.
//
// Console EOF does not end the session by default: the server treats a
// client shutdown as a disconnect and would terminate the program.
// --half-close sends the shutdown instead, for programs that read their
// input to EOF before answering.
package main
