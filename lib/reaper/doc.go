// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package reaper ends a spawned child and collects its exit status.
//
// [Reaper.Reap] runs once per session, after the bridge loop has
// returned. A child that already exited is collected immediately.
// Otherwise it receives SIGTERM, gets a grace interval to exit on its
// own, and is sent SIGKILL if it is still alive afterwards. A final
// blocking wait guarantees that no zombie outlives the session.
//
// Time is read through [clock.Clock] so tests can step through the
// grace interval without sleeping.
package reaper
