// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge forwards bytes between a client connection and the
// standard streams of one child process.
//
// [Bridge.Run] is a single-goroutine readiness loop built on poll(2).
// It watches four descriptors: the connection, the child's stdout and
// stderr read ends, and an internal wake pipe that is written when the
// context is cancelled. Everything read from the connection is queued
// for the child's stdin; everything read from stdout or stderr is queued
// for the connection. Output pipes are serviced before the connection,
// stdout before stderr, so bytes reach the client in the order the loop
// observed them.
//
// Writes never block the loop. Each direction has an outbound queue,
// and a descriptor is polled for writability only while its queue holds
// data. Once a queue reaches the high-water mark the loop stops reading
// from the sources that feed it, so a slow client throttles the child
// (and a child that stops reading stdin throttles the client) through
// the kernel's own pipe and socket buffers.
//
// The loop returns when the client disconnects ([PeerClosed]), when
// both output streams have reached end-of-stream and queued output has
// been flushed ([ChildClosed]), or when the context is cancelled
// ([Interrupted]). It never closes the connection or the pipes; that
// belongs to the session that owns them.
package bridge
