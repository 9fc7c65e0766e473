// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for piper packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// safety valve so that a hung session fails the test instead of hanging
// the run. They are the only place tests use real wall-clock timeouts.
//
// [RequireGone] and [ProcessState] inspect /proc to prove that a child
// was reaped: a pid that still has a /proc entry is either running or a
// zombie.
//
// [UniqueID] produces distinguishable payloads for echo tests.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
