// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is the task and message API agents use to coordinate
// through a relay.
//
// A [Client] owns one [relay.Conn] and one [event.Signer]. Every write
// builds a template with lib/schema, signs it, and publishes it,
// returning the parsed form of what was published. Reads query the
// relay and parse the results, skipping (and logging) events that do
// not parse.
//
// Task revisions share a task id (the "d" tag). Relays that keep
// history may return several revisions of one task; the graph
// operations collapse them to the latest revision per author and id
// before building the dependency graph.
package client
