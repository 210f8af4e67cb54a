// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"slices"

	"github.com/bureau-foundation/wasteland/lib/event"
	"github.com/bureau-foundation/wasteland/transport"
)

type pendingPublish struct {
	result chan error
}

func (p *pendingPublish) resolve(err error) {
	select {
	case p.result <- err:
	default:
	}
}

// Publish sends e and waits for the relay's OK. Returns nil when
// accepted, *PublishRejected when refused, ErrTimeout when no OK
// arrives within the publish timeout, and *transport.SendError when
// not connected or the connection drops first.
func (c *Conn) Publish(ctx context.Context, e event.Event) error {
	conn := c.currentTransport()
	if conn == nil {
		return &transport.SendError{Err: ErrNotConnected}
	}

	waiter := &pendingPublish{result: make(chan error, 1)}
	c.mu.Lock()
	c.publishes[e.ID] = append(c.publishes[e.ID], waiter)
	c.mu.Unlock()

	frame, err := EncodeEvent(e)
	if err != nil {
		c.removePublish(e.ID, waiter)
		return err
	}
	if err := conn.Send(ctx, frame); err != nil {
		c.removePublish(e.ID, waiter)
		return err
	}

	select {
	case err := <-waiter.result:
		if err == nil {
			c.logger.Debug("event accepted", "event_id", e.ID, "kind", e.Kind)
		}
		return err
	case <-c.clock.After(c.config.PublishTimeout):
		c.removePublish(e.ID, waiter)
		c.logger.Warn("publish timed out", "event_id", e.ID)
		return ErrTimeout
	case <-ctx.Done():
		c.removePublish(e.ID, waiter)
		return ctx.Err()
	}
}

func (c *Conn) removePublish(eventID string, waiter *pendingPublish) {
	c.mu.Lock()
	defer c.mu.Unlock()
	waiters := slices.DeleteFunc(c.publishes[eventID], func(w *pendingPublish) bool { return w == waiter })
	if len(waiters) == 0 {
		delete(c.publishes, eventID)
		return
	}
	c.publishes[eventID] = waiters
}
