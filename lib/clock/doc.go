// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the relay
// connection, the query and publish deadlines, and the worker poll loop.
//
// Production code holds a Clock field set to Real(). Tests hold a
// *FakeClock and drive time explicitly:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	conn := relay.New(relay.Config{Clock: c, ...})
//	// ... trigger a disconnect ...
//	c.WaitForTimers(1)        // the reconnect timer is now registered
//	c.Advance(time.Second)    // fire it deterministically
//
// WaitForTimers closes the race between a goroutine registering a
// timer and the test advancing past its deadline, which is the only
// reliable way to test exponential backoff without sleeping.
package clock
