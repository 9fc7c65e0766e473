// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so that the parts of
// piper that wait (the reaper's grace interval, the accept-error pause)
// and the parts that stamp times (the session greeting, journal records)
// can be driven deterministically in tests.
//
// Production code holds a Clock field and uses Real(). Tests use
// Fake(), whose time stands still until Advance is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go reaper.Reap(pid) // sleeps for the grace interval on c
//	c.WaitForSleepers(1)
//	c.Advance(time.Second)
package clock
