// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock instead of calling time.Now,
// time.After, time.NewTicker, or time.Sleep directly. In production,
// Real() provides the standard library behavior. Tests choose between
// two fakes:
//
//   - Fake() stands still until Advance is called. Use it when a test
//     drives a goroutine step by step (the poll ticker, for example),
//     pairing WaitForTimers with Advance.
//
//   - FakeAutoAdvance() moves time forward by d whenever After or
//     Sleep is called with d > 0 and fires the waiter immediately. Use
//     it for synchronous retry loops: a five-attempt probe with 500ms
//     spacing returns at once, and the test asserts that exactly two
//     seconds of fake time elapsed.
//
// # Wiring Pattern
//
//	type Prober struct {
//	    clock clock.Clock
//	    // ...
//	}
//
//	// production
//	prober := &Prober{clock: clock.Real()}
//
//	// tests
//	fake := clock.FakeAutoAdvance(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	prober := &Prober{clock: fake}
package clock
