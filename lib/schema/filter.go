// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "github.com/bureau-foundation/wasteland/lib/event"

// TaskFilter selects task events. Empty fields do not constrain.
type TaskFilter struct {
	Authors []string

	// EventIDs matches specific revisions.
	EventIDs []string

	// TaskIDs matches "d" tags, returning every revision of each task.
	TaskIDs    []string
	Statuses   []Status
	Priorities []Priority
	Since      *int64
	Until      *int64
	Limit      int
}

// Filter returns the relay filter for f. Kinds is always task.
func (f TaskFilter) Filter() event.Filter {
	filter := event.Filter{
		Kinds:   []int{event.KindTask},
		Authors: f.Authors,
		IDs:     f.EventIDs,
		Since:   f.Since,
		Until:   f.Until,
		Limit:   f.Limit,
	}
	addTag(&filter, TagD, f.TaskIDs)
	addTag(&filter, TagStatus, stringsOf(f.Statuses))
	addTag(&filter, TagPriority, stringsOf(f.Priorities))
	return filter
}

// MessageFilter selects message events.
type MessageFilter struct {
	Authors    []string
	Recipients []string
	Types      []MessageType
	ThreadID   string
	Since      *int64
	Until      *int64
	Limit      int
}

// Filter returns the relay filter for f. Kinds is always message.
func (f MessageFilter) Filter() event.Filter {
	filter := event.Filter{
		Kinds:   []int{event.KindMessage},
		Authors: f.Authors,
		Since:   f.Since,
		Until:   f.Until,
		Limit:   f.Limit,
	}
	addTag(&filter, TagRecipient, f.Recipients)
	addTag(&filter, TagMessageType, stringsOf(f.Types))
	if f.ThreadID != "" {
		addTag(&filter, TagThreadID, []string{f.ThreadID})
	}
	return filter
}

func addTag(filter *event.Filter, name string, values []string) {
	if len(values) == 0 {
		return
	}
	if filter.Tags == nil {
		filter.Tags = make(map[string][]string)
	}
	filter.Tags[name] = values
}

func stringsOf[T ~string](values []T) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
