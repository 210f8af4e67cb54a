// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
)

// Dialer opens connections to relays.
type Dialer interface {
	// Dial connects to url. Errors are *ConnectError.
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn is one live connection to a relay. Send may be called
// concurrently; Receive must have a single consumer.
type Conn interface {
	// Send writes one frame. Returns *SendError if the connection is
	// closed or the write fails.
	Send(ctx context.Context, frame []byte) error

	// Receive yields inbound frames in arrival order. The channel is
	// closed when the connection ends, after Err is set.
	Receive() <-chan []byte

	// Done is closed when the connection has ended for any reason.
	Done() <-chan struct{}

	// Err returns why the connection ended: ErrClosed after a local
	// Close, the read error after a remote close or network failure,
	// nil while the connection is live.
	Err() error

	// Close ends the connection. Safe to call more than once.
	Close() error
}

// ErrClosed is the cause recorded for connections closed locally, and
// for sends attempted after the connection ended.
var ErrClosed = errors.New("transport: connection closed")

// ConnectError reports a failed dial.
type ConnectError struct {
	URL string
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("transport: connecting to %s: %v", e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SendError reports a frame that could not be written.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("transport: send failed: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// IsConnectError reports whether err is or wraps a *ConnectError.
func IsConnectError(err error) bool {
	var connectError *ConnectError
	return errors.As(err, &connectError)
}

// IsSendError reports whether err is or wraps a *SendError.
func IsSendError(err error) bool {
	var sendError *SendError
	return errors.As(err, &sendError)
}
