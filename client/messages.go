// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/wasteland/lib/event"
	"github.com/bureau-foundation/wasteland/lib/schema"
	"github.com/bureau-foundation/wasteland/relay"
)

// SendMessage publishes a message.
func (c *Client) SendMessage(ctx context.Context, params schema.MessageParams) (schema.Message, error) {
	if params.Recipient == "" {
		return schema.Message{}, fmt.Errorf("client: sending message: recipient is required: %w", ErrInvalidParams)
	}
	if params.Type != "" && !params.Type.Valid() {
		return schema.Message{}, fmt.Errorf("client: sending message: unknown type %q: %w", params.Type, ErrInvalidParams)
	}
	if params.Priority != "" && !params.Priority.Valid() {
		return schema.Message{}, fmt.Errorf("client: sending message: unknown priority %q: %w", params.Priority, ErrInvalidParams)
	}

	published, err := c.publish(ctx, schema.BuildMessage(params, c.now()))
	if err != nil {
		return schema.Message{}, err
	}
	message, err := schema.ParseMessage(published)
	if err != nil {
		return schema.Message{}, err
	}
	c.logger.Info("message sent",
		"event_id", message.EventID,
		"recipient", message.Recipient,
		"message_type", string(message.Type),
	)
	return message, nil
}

// ReplyToMessage answers original in its thread.
func (c *Client) ReplyToMessage(ctx context.Context, original schema.Message, content string) (schema.Message, error) {
	if original.EventID == "" || original.Sender == "" {
		return schema.Message{}, fmt.Errorf("client: replying: original message has no event id or sender: %w", ErrInvalidParams)
	}
	return c.SendMessage(ctx, schema.ReplyParams(original, content))
}

// SendPolecatDone reports taskID finished to recipient.
func (c *Client) SendPolecatDone(ctx context.Context, recipient, taskID, notes string) (schema.Message, error) {
	return c.SendMessage(ctx, schema.PolecatDone(recipient, taskID, notes))
}

// SendMergeReady tells recipient that branch can be merged.
func (c *Client) SendMergeReady(ctx context.Context, recipient, branch, notes string) (schema.Message, error) {
	return c.SendMessage(ctx, schema.MergeReady(recipient, branch, notes))
}

// SendNotification sends a plain notification.
func (c *Client) SendNotification(ctx context.Context, recipient, subject, content string, priority schema.Priority) (schema.Message, error) {
	return c.SendMessage(ctx, schema.Notification(recipient, subject, content, priority))
}

// QueryMessages returns the stored messages matching filter.
func (c *Client) QueryMessages(ctx context.Context, filter schema.MessageFilter) ([]schema.Message, error) {
	events, err := c.query(ctx, filter.Filter())
	messages, skipped := schema.ParseMessages(events)
	c.logSkipped("message", skipped)
	return messages, err
}

// GetMyMessages returns messages addressed to this client. Any
// Recipients in filter are replaced.
func (c *Client) GetMyMessages(ctx context.Context, filter schema.MessageFilter) ([]schema.Message, error) {
	filter.Recipients = []string{c.PublicKey()}
	return c.QueryMessages(ctx, filter)
}

// GetMessageThread returns the root message threadID and every message
// tagged with it, oldest first.
func (c *Client) GetMessageThread(ctx context.Context, threadID string) ([]schema.Message, error) {
	if threadID == "" {
		return nil, fmt.Errorf("client: thread id is required: %w", ErrInvalidParams)
	}
	root := event.Filter{Kinds: []int{event.KindMessage}, IDs: []string{threadID}}
	replies := schema.MessageFilter{ThreadID: threadID}.Filter()
	events, err := c.query(ctx, root, replies)
	messages, skipped := schema.ParseMessages(events)
	c.logSkipped("message", skipped)
	return schema.Thread(messages, threadID), err
}

// SubscribeToMessages calls handler for every message addressed to
// this client that arrives from now on.
func (c *Client) SubscribeToMessages(handler func(schema.Message)) *relay.Subscription {
	filter := schema.MessageFilter{Recipients: []string{c.PublicKey()}}
	return c.conn.SubscribeFunc(func(e event.Event) {
		message, err := schema.ParseMessage(e)
		if err != nil {
			c.logger.Warn("dropping malformed message event", "event_id", e.ID, "error", err)
			return
		}
		handler(message)
	}, filter.Filter())
}
