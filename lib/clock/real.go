// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// system is the wall clock. It has no state, so every Real() shares it.
var system Clock = wallClock{}

// Real returns the wall clock. The daemon and the attach client use it
// unless a test injects a FakeClock.
func Real() Clock { return system }

// Since returns the time elapsed on c since t.
func Since(c Clock, t time.Time) time.Duration { return c.Now().Sub(t) }

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (w wallClock) After(d time.Duration) <-chan time.Time { return w.NewTimer(d).C }

func (wallClock) NewTimer(d time.Duration) *Timer {
	timer := time.NewTimer(d)
	return &Timer{C: timer.C, stopFunc: timer.Stop}
}

func (wallClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	ticker := time.NewTicker(d)
	return &Ticker{C: ticker.C, stopFunc: ticker.Stop}
}

func (wallClock) Sleep(d time.Duration) { time.Sleep(d) }
