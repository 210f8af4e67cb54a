// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned by Publish when no OK arrives in time.
	ErrTimeout = errors.New("relay: timed out waiting for OK")

	// ErrNotConnected is the cause inside the *transport.SendError
	// returned for operations attempted without a live connection.
	ErrNotConnected = errors.New("relay: not connected")

	// ErrConnectionLost is the cause inside the *transport.SendError
	// returned to publishes whose connection ended before the OK.
	ErrConnectionLost = errors.New("relay: connection lost")

	// ErrRetriesExhausted is reported to OnReconnectError when the
	// reconnect policy's MaxRetries is reached.
	ErrRetriesExhausted = errors.New("relay: reconnect attempts exhausted")

	// ErrClosed is returned by operations on a closed Conn.
	ErrClosed = errors.New("relay: connection manager closed")
)

// PublishRejected is returned by Publish when the relay answers OK
// with accepted=false.
type PublishRejected struct {
	EventID string
	Reason  string
}

func (e *PublishRejected) Error() string {
	return fmt.Sprintf("relay: event %s rejected: %s", e.EventID, e.Reason)
}

// IsPublishRejected reports whether err is or wraps a
// *PublishRejected.
func IsPublishRejected(err error) bool {
	var rejected *PublishRejected
	return errors.As(err, &rejected)
}
