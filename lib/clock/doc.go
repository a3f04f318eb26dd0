// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Code that waits (the convergence poller, the propagation backoff)
// takes a Clock instead of calling time.Now or time.After. Production
// passes Real(); tests pass Fake() and move time with Advance:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go poller.Await(ctx, baseline, options)
//	c.WaitForTimers(1)           // poller is now sleeping
//	c.Advance(100 * time.Millisecond)
//
// WaitForTimers removes the race between a goroutine registering a
// timer and the test advancing past it.
package clock
