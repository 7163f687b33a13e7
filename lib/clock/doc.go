// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that wait on deadlines take a [Clock] instead of calling
// the time package directly. Production wiring passes [Real]; tests pass
// [Fake] and move time with [FakeClock.Advance]:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	reaper := daemon.NewReaper(registry, fake, logger)
//	// ... schedule something ...
//	fake.WaitForTimers(1)
//	fake.Advance(10 * time.Second)
//
// [FakeClock.WaitForTimers] blocks until a goroutine has registered the
// timer the test is about to fire, which removes the need for sleeps in
// tests.
package clock
