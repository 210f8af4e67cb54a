// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"slices"

	"github.com/bureau-foundation/wasteland/lib/event"
)

// Task tag names.
const (
	TagD         = "d"
	TagTitle     = "title"
	TagStatus    = "status"
	TagPriority  = "priority"
	TagBlocks    = "blocks"
	TagBlockedBy = "blocked-by"
	TagParent    = "parent"
)

// TaskParams describes a task to publish. Zero Status and Priority
// mean open and normal.
type TaskParams struct {
	// ID is the logical task identifier carried in the "d" tag. Every
	// revision of a task shares it.
	ID       string
	Title    string
	Content  string
	Status   Status
	Priority Priority

	// Blocks lists tasks this task blocks, by event id or by task
	// id. Task ids survive revisions; event ids pin one revision.
	Blocks []string

	// BlockedBy lists tasks that block this task, by event id or by
	// task id.
	BlockedBy []string

	// Parent is an optional parent task id.
	Parent string
}

// Task is a parsed task event.
type Task struct {
	// ID is the "d" tag value.
	ID string

	// EventID identifies this revision.
	EventID   string
	Author    string
	CreatedAt int64
	Title     string
	Content   string
	Status    Status
	Priority  Priority
	Blocks    []string
	BlockedBy []string
	Parent    string
}

// Params returns the fields a rebuild of t would need.
func (t Task) Params() TaskParams {
	return TaskParams{
		ID:        t.ID,
		Title:     t.Title,
		Content:   t.Content,
		Status:    t.Status,
		Priority:  t.Priority,
		Blocks:    slices.Clone(t.Blocks),
		BlockedBy: slices.Clone(t.BlockedBy),
		Parent:    t.Parent,
	}
}

// BuildTask returns the unsigned task template for params.
func BuildTask(params TaskParams, createdAt int64) event.Template {
	status := params.Status
	if status == "" {
		status = StatusOpen
	}
	priority := params.Priority
	if priority == "" {
		priority = PriorityNormal
	}

	tags := event.Tags{
		{TagD, params.ID},
		{TagTitle, params.Title},
		{TagStatus, string(status)},
		{TagPriority, string(priority)},
	}
	for _, id := range params.Blocks {
		tags = append(tags, event.Tag{TagBlocks, id})
	}
	for _, id := range params.BlockedBy {
		tags = append(tags, event.Tag{TagBlockedBy, id})
	}
	if params.Parent != "" {
		tags = append(tags, event.Tag{TagParent, params.Parent})
	}

	return event.Template{
		Kind:      event.KindTask,
		CreatedAt: createdAt,
		Tags:      tags,
		Content:   params.Content,
	}
}

// ParseTask returns the typed view of e.
func ParseTask(e event.Event) (Task, error) {
	if e.Kind != event.KindTask {
		return Task{}, fmt.Errorf("schema: event %s has kind %d, want task kind %d: %w", e.ID, e.Kind, event.KindTask, ErrMalformedEvent)
	}
	dTag, ok := e.Tags.Find(TagD)
	if !ok || len(dTag) < 2 {
		return Task{}, fmt.Errorf("schema: task event %s has no d tag: %w", e.ID, ErrMalformedEvent)
	}

	status, _ := ParseStatus(e.Tags.Value(TagStatus))
	priority, _ := ParsePriority(e.Tags.Value(TagPriority))

	return Task{
		ID:        dTag[1],
		EventID:   e.ID,
		Author:    e.PubKey,
		CreatedAt: e.CreatedAt,
		Title:     e.Tags.Value(TagTitle),
		Content:   e.Content,
		Status:    status,
		Priority:  priority,
		Blocks:    e.Tags.Values(TagBlocks),
		BlockedBy: e.Tags.Values(TagBlockedBy),
		Parent:    e.Tags.Value(TagParent),
	}, nil
}

// ParseTasks parses every event, returning the tasks that parsed and
// the number that did not.
func ParseTasks(events []event.Event) ([]Task, int) {
	tasks := make([]Task, 0, len(events))
	skipped := 0
	for _, e := range events {
		task, err := ParseTask(e)
		if err != nil {
			skipped++
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, skipped
}

// TaskUpdate overrides fields of an existing task. Nil fields inherit.
// A non-nil empty slice clears the edge list; a pointer to "" clears
// the parent.
type TaskUpdate struct {
	Title     *string
	Content   *string
	Status    *Status
	Priority  *Priority
	Blocks    []string
	BlockedBy []string
	Parent    *string
}

// UpdateTask returns a new template for existing with update applied.
// The "d" tag is always inherited.
func UpdateTask(existing event.Event, update TaskUpdate, createdAt int64) (event.Template, error) {
	task, err := ParseTask(existing)
	if err != nil {
		return event.Template{}, err
	}
	return BuildTask(task.Apply(update), createdAt), nil
}

// Apply returns t's parameters with update applied. ID is never
// changed.
func (t Task) Apply(update TaskUpdate) TaskParams {
	params := t.Params()
	if update.Title != nil {
		params.Title = *update.Title
	}
	if update.Content != nil {
		params.Content = *update.Content
	}
	if update.Status != nil {
		params.Status = *update.Status
	}
	if update.Priority != nil {
		params.Priority = *update.Priority
	}
	if update.Blocks != nil {
		params.Blocks = slices.Clone(update.Blocks)
	}
	if update.BlockedBy != nil {
		params.BlockedBy = slices.Clone(update.BlockedBy)
	}
	if update.Parent != nil {
		params.Parent = *update.Parent
	}
	return params
}

// LatestByD keeps one task per (author, d tag): the revision with the
// highest CreatedAt, ties broken by the larger event id. Output order
// follows each key's first appearance in tasks.
func LatestByD(tasks []Task) []Task {
	type key struct{ author, id string }
	index := make(map[key]int, len(tasks))
	var latest []Task
	for _, task := range tasks {
		k := key{task.Author, task.ID}
		position, seen := index[k]
		if !seen {
			index[k] = len(latest)
			latest = append(latest, task)
			continue
		}
		current := latest[position]
		if task.CreatedAt > current.CreatedAt ||
			(task.CreatedAt == current.CreatedAt && task.EventID > current.EventID) {
			latest[position] = task
		}
	}
	return latest
}
