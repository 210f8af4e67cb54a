// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// Status is a task lifecycle state.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed:
		return true
	}
	return false
}

// ParseStatus returns the status named by value, or StatusOpen and
// false for anything unknown.
func ParseStatus(value string) (Status, bool) {
	status := Status(value)
	if !status.Valid() {
		return StatusOpen, false
	}
	return status, true
}

// Priority ranks tasks and messages.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Rank orders priorities from 0 (low) to 3 (urgent). Unknown values
// rank as normal.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	default:
		return 1
	}
}

// ParsePriority returns the priority named by value, or
// PriorityNormal and false for anything unknown.
func ParsePriority(value string) (Priority, bool) {
	priority := Priority(value)
	if !priority.Valid() {
		return PriorityNormal, false
	}
	return priority, true
}

// MessageType classifies a message. The upper-case values are the
// merge-queue protocol between workers, witnesses, and the refinery.
type MessageType string

const (
	MessageTypePolecatDone   MessageType = "POLECAT_DONE"
	MessageTypeMergeReady    MessageType = "MERGE_READY"
	MessageTypeMerged        MessageType = "MERGED"
	MessageTypeMergeFailed   MessageType = "MERGE_FAILED"
	MessageTypeReworkRequest MessageType = "REWORK_REQUEST"
	MessageTypeNotification  MessageType = "notification"
	MessageTypeReply         MessageType = "reply"
	MessageTypeTask          MessageType = "task"
	MessageTypeScavenge      MessageType = "scavenge"
)

// MessageTypes lists every known message type.
var MessageTypes = []MessageType{
	MessageTypePolecatDone,
	MessageTypeMergeReady,
	MessageTypeMerged,
	MessageTypeMergeFailed,
	MessageTypeReworkRequest,
	MessageTypeNotification,
	MessageTypeReply,
	MessageTypeTask,
	MessageTypeScavenge,
}

// Valid reports whether m is a known message type.
func (m MessageType) Valid() bool {
	for _, known := range MessageTypes {
		if m == known {
			return true
		}
	}
	return false
}
