// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock frozen at initial.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{now: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a Clock whose time moves only through Advance. Timers
// and tickers fire in deadline order, each seeing its own deadline as
// the current time. It is safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*alarm // sorted by due, then by registration order
	seq     uint64
	changed *sync.Cond
}

// alarm is a registered timer or ticker.
type alarm struct {
	due    time.Time
	seq    uint64
	period time.Duration // zero for one-shot timers
	fire   chan time.Time
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After is NewTimer(d).C.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	return c.NewTimer(d).C
}

// NewTimer registers a one-shot alarm d from now. A non-positive d
// delivers the current time immediately and registers nothing.
func (c *FakeClock) NewTimer(d time.Duration) *Timer {
	fire := make(chan time.Time, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		fire <- c.now
		return &Timer{C: fire, stopFunc: func() bool { return false }}
	}
	a := c.addLocked(d, 0, fire)
	return &Timer{C: fire, stopFunc: func() bool { return c.remove(a) }}
}

// NewTicker registers a repeating alarm. Panics if d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	fire := make(chan time.Time, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.addLocked(d, d, fire)
	return &Ticker{C: fire, stopFunc: func() { c.remove(a) }}
}

// Sleep blocks until Advance moves the clock d past the call.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// Advance moves the clock forward by d, firing every alarm that falls
// due on the way. A ticker fires once per elapsed period. Deliveries
// never block: a tick into a full channel is dropped, as with
// time.Ticker.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.now.Add(d)
	for len(c.pending) > 0 && !c.pending[0].due.After(target) {
		a := c.pending[0]
		c.pending = c.pending[1:]
		c.now = a.due

		select {
		case a.fire <- a.due:
		default:
		}
		if a.period > 0 {
			a.due = a.due.Add(a.period)
			c.insertLocked(a)
		}
	}
	c.now = target
	c.changed.Broadcast()
}

// WaitForTimers blocks until at least n alarms are pending. Tests call
// it before Advance so that a goroutine about to wait on the clock has
// registered its timer.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pending) < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of registered alarms.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *FakeClock) addLocked(d, period time.Duration, fire chan time.Time) *alarm {
	c.seq++
	a := &alarm{due: c.now.Add(d), seq: c.seq, period: period, fire: fire}
	c.insertLocked(a)
	c.changed.Broadcast()
	return a
}

func (c *FakeClock) insertLocked(a *alarm) {
	index := sort.Search(len(c.pending), func(i int) bool {
		other := c.pending[i]
		if other.due.Equal(a.due) {
			return other.seq > a.seq
		}
		return other.due.After(a.due)
	})
	c.pending = append(c.pending, nil)
	copy(c.pending[index+1:], c.pending[index:])
	c.pending[index] = a
}

// remove unregisters a and reports whether it was still pending.
func (c *FakeClock) remove(a *alarm) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, candidate := range c.pending {
		if candidate == a {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			c.changed.Broadcast()
			return true
		}
	}
	return false
}
