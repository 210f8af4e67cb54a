// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries relay frames over one bidirectional
// connection.
//
// A [Dialer] opens a [Conn] to a relay URL. A Conn moves opaque text
// frames: [Conn.Send] writes one frame, [Conn.Receive] yields inbound
// frames in arrival order and is closed when the connection ends, and
// [Conn.Err] reports why it ended. The package has no retry or
// reconnect logic; the relay package owns connection lifecycle.
//
// [WebsocketDialer] is the production implementation on
// gorilla/websocket. gorilla connections allow one concurrent writer,
// so [WebsocketConn] serializes writes with a mutex and runs a single
// read-loop goroutine per connection. [WrapWebsocket] adapts an
// already-upgraded server-side connection, which is how test relays
// speak the same Conn interface.
//
// [Pipe] returns an in-memory connected pair for tests that do not
// need a network.
//
// Errors: a failed dial returns [*ConnectError]; a send on a closed
// connection (or one whose write fails) returns [*SendError]. Both
// unwrap to the underlying cause.
package transport
