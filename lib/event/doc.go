// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package event defines the raw relay event model: [Event], [Tags],
// [Filter], and the [Signer] capability that turns an unsigned
// [Template] into a signed [Event].
//
// Events are immutable once signed. A logical object (a task, a
// message) is never edited in place; a new event carrying the same
// "d" tag supersedes the old one. This package knows nothing about
// tasks or messages. The typed view lives in lib/schema.
//
// The JSON encoding of Event and Filter is the NIP-01 wire shape.
// Filter tag constraints serialize as "#name" keys.
package event
