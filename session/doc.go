// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session runs one client connection from greeting to journal
// record.
//
// [Handler.Serve] performs, in order: send the greeting, read the
// command line, spawn the program, bridge the connection to the
// program's streams, close the connection, reap the program, and append
// a journal record. Every step that fails ends the session early with
// the connection closed; a session never leaves a child process or a
// descriptor behind.
//
// The handler reads its settings from a [config.Store] at the start of
// each session, so a configuration reload applies from the next
// connection on.
package session
