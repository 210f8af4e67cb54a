// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import "strings"

// dispatch routes one inbound frame. Runs on the read loop goroutine.
func (c *Conn) dispatch(data []byte) {
	frame, err := DecodeFrame(data)
	if err != nil {
		c.logger.Warn("dropping undecodable frame", "error", err)
		return
	}

	switch frame.Type {
	case FrameEvent:
		c.dispatchEvent(frame)
	case FrameEOSE:
		c.dispatchEOSE(frame.SubscriptionID)
	case FrameOK:
		c.dispatchOK(frame)
	case FrameNotice:
		c.dispatchNotice(frame.Message)
	case FrameClosed:
		c.dispatchClosed(frame)
	default:
		c.logger.Debug("ignoring client-bound frame type", "type", frame.Type)
	}
}

func (c *Conn) dispatchEvent(frame Frame) {
	if frame.Event == nil || frame.SubscriptionID == "" {
		c.logger.Debug("ignoring EVENT without subscription id")
		return
	}
	e := *frame.Event
	if verify := c.config.Verify; verify != nil && !verify(e) {
		c.logger.Warn("dropping event with invalid signature",
			"subscription_id", frame.SubscriptionID,
			"event_id", e.ID,
		)
		return
	}

	c.mu.Lock()
	subscription := c.subscriptions[frame.SubscriptionID]
	query := c.queries[frame.SubscriptionID]
	c.mu.Unlock()

	switch {
	case subscription != nil:
		if !c.seen.Add(e.ID) {
			c.logger.Debug("dropping duplicate event",
				"subscription_id", frame.SubscriptionID,
				"event_id", e.ID,
			)
			return
		}
		subscription.enqueue(e)
	case query != nil:
		query.add(e)
	default:
		c.logger.Debug("event for unknown subscription",
			"subscription_id", frame.SubscriptionID,
			"event_id", e.ID,
		)
	}
}

func (c *Conn) dispatchEOSE(subscriptionID string) {
	c.mu.Lock()
	query := c.queries[subscriptionID]
	c.mu.Unlock()
	if query != nil {
		query.finish()
		return
	}
	c.logger.Debug("end of stored events", "subscription_id", subscriptionID)
}

func (c *Conn) dispatchOK(frame Frame) {
	c.mu.Lock()
	waiters := c.publishes[frame.EventID]
	delete(c.publishes, frame.EventID)
	c.mu.Unlock()

	if len(waiters) == 0 {
		c.logger.Debug("OK for unknown event", "event_id", frame.EventID)
		return
	}
	var result error
	if !frame.Accepted {
		result = &PublishRejected{EventID: frame.EventID, Reason: frame.Message}
	}
	for _, waiter := range waiters {
		waiter.resolve(result)
	}
}

func (c *Conn) dispatchNotice(message string) {
	c.logger.Warn("relay notice", "notice", message)
	if hook := c.config.PaymentHook; hook != nil && mentionsPayment(message) {
		go hook(message)
	}
}

func mentionsPayment(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "payment") || strings.Contains(lower, "ilp")
}

func (c *Conn) dispatchClosed(frame Frame) {
	c.mu.Lock()
	query := c.queries[frame.SubscriptionID]
	_, live := c.subscriptions[frame.SubscriptionID]
	c.mu.Unlock()

	switch {
	case query != nil:
		query.finish()
	case live:
		c.logger.Warn("relay closed subscription",
			"subscription_id", frame.SubscriptionID,
			"reason", frame.Message,
		)
	}
}
