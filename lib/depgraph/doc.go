// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package depgraph computes readiness, reachability, cycles and
// ordering over the dependency edges of a task snapshot.
//
// A [Graph] is built once from a slice of [schema.Task] values and is
// immutable afterwards. Nodes are keyed by event id. Edges come from
// the "blocks" and "blocked-by" tags; a reference may name either an
// event id or a task id ("d" tag), and each declared edge is visible
// from both ends, so "A blocks B" and "B blocked-by A" describe the
// same edge.
//
// References that resolve to no node in the snapshot are dangling.
// Dangling references never block a task and never appear in
// traversal or ordering results: a snapshot is often partial (for
// example, closed tasks filtered out by the query), and absence is not
// an active block.
//
// The graph holds no locks. It is safe for concurrent readers once
// [Build] returns.
package depgraph
