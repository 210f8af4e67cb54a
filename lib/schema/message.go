// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bureau-foundation/wasteland/lib/event"
)

// Message tag names.
const (
	TagRecipient   = "p"
	TagSubject     = "subject"
	TagMessageType = "message-type"
	TagThreadID    = "thread-id"
	TagReference   = "e"

	// ReplyMarker is the fourth element of the "e" tag that marks a
	// reply.
	ReplyMarker = "reply"

	replyPrefix = "Re: "
)

// MessageParams describes a message to publish.
type MessageParams struct {
	// Recipient is the hex public key of the addressee.
	Recipient string
	Subject   string
	Content   string
	Type      MessageType
	Priority  Priority
	ThreadID  string

	// ReplyTo is the event id of the message being answered.
	ReplyTo string
}

// Message is a parsed message event.
type Message struct {
	EventID   string
	Sender    string
	Recipient string
	CreatedAt int64
	Subject   string
	Content   string
	Type      MessageType
	Priority  Priority
	ThreadID  string
	ReplyTo   string
}

// BuildMessage returns the unsigned message template for params. An
// empty Type is published as notification.
func BuildMessage(params MessageParams, createdAt int64) event.Template {
	messageType := params.Type
	if messageType == "" {
		messageType = MessageTypeNotification
	}
	priority := params.Priority
	if priority == "" {
		priority = PriorityNormal
	}

	tags := event.Tags{
		{TagRecipient, params.Recipient},
		{TagSubject, params.Subject},
		{TagMessageType, string(messageType)},
		{TagPriority, string(priority)},
	}
	if params.ThreadID != "" {
		tags = append(tags, event.Tag{TagThreadID, params.ThreadID})
	}
	if params.ReplyTo != "" {
		tags = append(tags, event.Tag{TagReference, params.ReplyTo, "", ReplyMarker})
	}

	return event.Template{
		Kind:      event.KindMessage,
		CreatedAt: createdAt,
		Tags:      tags,
		Content:   params.Content,
	}
}

// ParseMessage returns the typed view of e.
func ParseMessage(e event.Event) (Message, error) {
	if e.Kind != event.KindMessage {
		return Message{}, fmt.Errorf("schema: event %s has kind %d, want message kind %d: %w", e.ID, e.Kind, event.KindMessage, ErrMalformedEvent)
	}
	recipient, ok := e.Tags.Find(TagRecipient)
	if !ok || len(recipient) < 2 {
		return Message{}, fmt.Errorf("schema: message event %s has no p tag: %w", e.ID, ErrMalformedEvent)
	}

	messageType := MessageType(e.Tags.Value(TagMessageType))
	if messageType == "" {
		messageType = MessageTypeNotification
	}
	priority, _ := ParsePriority(e.Tags.Value(TagPriority))

	return Message{
		EventID:   e.ID,
		Sender:    e.PubKey,
		Recipient: recipient[1],
		CreatedAt: e.CreatedAt,
		Subject:   e.Tags.Value(TagSubject),
		Content:   e.Content,
		Type:      messageType,
		Priority:  priority,
		ThreadID:  e.Tags.Value(TagThreadID),
		ReplyTo:   replyTarget(e.Tags),
	}, nil
}

// replyTarget prefers an "e" tag carrying the reply marker and falls
// back to the first "e" tag.
func replyTarget(tags event.Tags) string {
	references := tags.FindAll(TagReference)
	for _, tag := range references {
		if len(tag) >= 4 && tag[3] == ReplyMarker {
			return tag[1]
		}
	}
	if len(references) > 0 {
		return references[0].Value()
	}
	return ""
}

// ParseMessages parses every event, returning the messages that
// parsed and the number that did not.
func ParseMessages(events []event.Event) ([]Message, int) {
	messages := make([]Message, 0, len(events))
	skipped := 0
	for _, e := range events {
		message, err := ParseMessage(e)
		if err != nil {
			skipped++
			continue
		}
		messages = append(messages, message)
	}
	return messages, skipped
}

// BuildReply answers original. See [ReplyParams].
func BuildReply(original event.Event, content string, createdAt int64) (event.Template, error) {
	message, err := ParseMessage(original)
	if err != nil {
		return event.Template{}, err
	}
	return BuildMessage(ReplyParams(message, content), createdAt), nil
}

// ReplyParams answers original. The reply goes to the original
// sender, stays in the original's thread (or starts one rooted at the
// original), and adds a single "Re: " prefix to the subject.
func ReplyParams(original Message, content string) MessageParams {
	threadID := original.ThreadID
	if threadID == "" {
		threadID = original.EventID
	}
	subject := original.Subject
	if !strings.HasPrefix(subject, replyPrefix) {
		subject = replyPrefix + subject
	}
	return MessageParams{
		Recipient: original.Sender,
		Subject:   subject,
		Content:   content,
		Type:      MessageTypeReply,
		Priority:  PriorityNormal,
		ThreadID:  threadID,
		ReplyTo:   original.EventID,
	}
}

// Thread returns the messages belonging to threadID (those tagged with
// it, plus the root message whose event id is threadID) ordered by
// CreatedAt. Equal timestamps keep input order.
func Thread(messages []Message, threadID string) []Message {
	var thread []Message
	for _, message := range messages {
		if message.ThreadID == threadID || message.EventID == threadID {
			thread = append(thread, message)
		}
	}
	sort.SliceStable(thread, func(i, j int) bool {
		return thread[i].CreatedAt < thread[j].CreatedAt
	})
	return thread
}

// PolecatDone reports a finished task to recipient. Empty notes
// produce a default body.
func PolecatDone(recipient, taskID, notes string) MessageParams {
	if notes == "" {
		notes = fmt.Sprintf("Task %s completed", taskID)
	}
	return MessageParams{
		Recipient: recipient,
		Subject:   "Task Completed: " + taskID,
		Content:   notes,
		Type:      MessageTypePolecatDone,
		Priority:  PriorityNormal,
	}
}

// MergeReady tells the refinery that branch can be merged.
func MergeReady(recipient, branch, notes string) MessageParams {
	if notes == "" {
		notes = fmt.Sprintf("Branch %s is ready for merge", branch)
	}
	return MessageParams{
		Recipient: recipient,
		Subject:   "Merge Ready: " + branch,
		Content:   notes,
		Type:      MessageTypeMergeReady,
		Priority:  PriorityHigh,
	}
}

// Notification is a plain notification message.
func Notification(recipient, subject, content string, priority Priority) MessageParams {
	if priority == "" {
		priority = PriorityNormal
	}
	return MessageParams{
		Recipient: recipient,
		Subject:   subject,
		Content:   content,
		Type:      MessageTypeNotification,
		Priority:  priority,
	}
}
