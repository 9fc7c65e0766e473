// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock whose time starts at initial and moves only
// when Advance is called.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.sleepersChanged = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a deterministic Clock for tests. It is safe for
// concurrent use.
type FakeClock struct {
	mu              sync.Mutex
	current         time.Time
	sleepers        []*sleeper
	sleepersChanged *sync.Cond
}

// sleeper is a pending After or Sleep call.
type sleeper struct {
	deadline time.Time
	channel  chan time.Time
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After registers a sleeper that fires when the clock is advanced to or
// past now+d.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.current
		return channel
	}
	c.sleepers = append(c.sleepers, &sleeper{
		deadline: c.current.Add(d),
		channel:  channel,
	})
	c.sleepersChanged.Broadcast()
	return channel
}

// Sleep blocks until the clock is advanced past now+d.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// Advance moves the clock forward by d and releases every sleeper whose
// deadline is reached, in deadline order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	target := c.current

	var expired, remaining []*sleeper
	for _, pending := range c.sleepers {
		if pending.deadline.After(target) {
			remaining = append(remaining, pending)
		} else {
			expired = append(expired, pending)
		}
	}
	c.sleepers = remaining
	c.sleepersChanged.Broadcast()
	c.mu.Unlock()

	sort.Slice(expired, func(i, j int) bool {
		return expired[i].deadline.Before(expired[j].deadline)
	})
	for _, pending := range expired {
		pending.channel <- target
	}
}

// WaitForSleepers blocks until at least n After or Sleep calls are
// pending. Call it before Advance to avoid racing the goroutine that is
// about to sleep.
func (c *FakeClock) WaitForSleepers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.sleepers) < n {
		c.sleepersChanged.Wait()
	}
}

// Pending returns the number of sleepers that have not fired.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleepers)
}
