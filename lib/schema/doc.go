// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema is the typed view of wasteland events: tasks (kind
// 30100) and messages (kind 31000).
//
// Build functions produce unsigned [event.Template] values with tags in
// a fixed order. Parse functions are total over well-formed kinds:
// missing optional tags take their defaults, unknown status or
// priority values fall back to "open" and "normal". They fail with
// [ErrMalformedEvent] only when the event is structurally not a task
// or message (wrong kind, or no identifier tag).
//
// Task tag layout:
//
//	["d", id] ["title", t] ["status", s] ["priority", p]
//	["blocks", x]* ["blocked-by", y]* ["parent", z]?
//
// Message tag layout:
//
//	["p", recipient] ["subject", s] ["message-type", m] ["priority", p]
//	["thread-id", t]? ["e", original, "", "reply"]?
//
// Updates never mutate: [UpdateTask] returns a new template carrying
// the same "d" tag. Several revisions of one task may therefore be
// live on the relay at once; [LatestByD] collapses them when the
// caller wants one row per task.
package schema
