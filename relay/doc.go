// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay manages one resilient connection to a NIP-01 relay.
//
// A [Conn] owns the transport connection, the connection state
// machine, the registry of live subscriptions, in-flight queries and
// publishes, and the shared [SeenCache]. All of it sits behind one
// mutex; callbacks and channel sends never run while it is held.
//
// # Connection lifecycle
//
// States move Disconnected → Connecting → Connected, and from
// Connected to Reconnecting (transport lost) or Closing (Disconnect).
// When the transport ends without a Disconnect, the Conn schedules a
// reconnect on its injected clock with delay
// min(InitialDelay × Multiplier^attempt, MaxDelay). A successful
// connect resets the attempt counter and re-sends REQ for every
// registered subscription with its original id and filters. At most
// one reconnect is pending at a time. [Conn.Disconnect] suppresses
// reconnection until the next [Conn.Connect].
//
// # Subscriptions and queries
//
// [Conn.Subscribe] registers a long-lived REQ and returns a
// [Subscription] whose Events channel is fed from an unbounded
// per-subscription queue, so a slow consumer never stalls the read
// loop. Events pass the shared [SeenCache]: an id already delivered on
// any subscription, including before a reconnect, is dropped.
//
// [Conn.Query] is one-shot: REQ, collect until EOSE, CLOSED, or the
// query timeout, then CLOSE. A query deduplicates within itself but
// does not consult the shared cache, so it always returns a complete
// snapshot. Timeout is not an error; the partial result is returned.
//
// [Conn.Publish] sends EVENT and waits for the matching OK.
package relay
