// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds channel helpers shared by the relay, client,
// and worker tests.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests never block forever when a subscription fails to
// deliver. [RequireNoReceive] asserts the opposite: that nothing is
// delivered within a short window, which is how dedup is tested.
// These helpers are the only place the tests use wall-clock timeouts;
// everything else runs on clock.FakeClock.
//
// All helpers call t.Fatalf on failure.
package testutil
