// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/bureau-foundation/wasteland/lib/depgraph"
	"github.com/bureau-foundation/wasteland/lib/event"
	"github.com/bureau-foundation/wasteland/lib/schema"
	"github.com/bureau-foundation/wasteland/relay"
)

// CreateTask publishes a new task. An empty ID is generated from the
// author, time, and title, avoiding ids this client already knows.
func (c *Client) CreateTask(ctx context.Context, params schema.TaskParams) (schema.Task, error) {
	if strings.TrimSpace(params.Title) == "" {
		return schema.Task{}, fmt.Errorf("client: creating task: title is required: %w", ErrInvalidParams)
	}
	if params.Status != "" && !params.Status.Valid() {
		return schema.Task{}, fmt.Errorf("client: creating task: unknown status %q: %w", params.Status, ErrInvalidParams)
	}
	if params.Priority != "" && !params.Priority.Valid() {
		return schema.Task{}, fmt.Errorf("client: creating task: unknown priority %q: %w", params.Priority, ErrInvalidParams)
	}

	createdAt := c.now()
	if params.ID == "" {
		c.mu.Lock()
		params.ID = schema.NewTaskID(c.PublicKey(), createdAt, params.Title, func(id string) bool {
			_, taken := c.taskIDs[id]
			return taken
		})
		c.taskIDs[params.ID] = struct{}{}
		c.mu.Unlock()
	}

	task, err := c.publishTask(ctx, schema.BuildTask(params, createdAt))
	if err != nil {
		return schema.Task{}, err
	}
	c.logger.Info("task created", "task_id", task.ID, "event_id", task.EventID)
	return task, nil
}

// UpdateTask publishes a new revision of existing with update applied.
// The revision's created_at is at least one second after existing's so
// relays replace the older revision.
func (c *Client) UpdateTask(ctx context.Context, existing schema.Task, update schema.TaskUpdate) (schema.Task, error) {
	if existing.ID == "" {
		return schema.Task{}, fmt.Errorf("client: updating task: existing task has no id: %w", ErrInvalidParams)
	}
	if update.Status != nil && !update.Status.Valid() {
		return schema.Task{}, fmt.Errorf("client: updating task %s: unknown status %q: %w", existing.ID, *update.Status, ErrInvalidParams)
	}
	createdAt := max(c.now(), existing.CreatedAt+1)
	task, err := c.publishTask(ctx, schema.BuildTask(existing.Apply(update), createdAt))
	if err != nil {
		return schema.Task{}, err
	}
	c.logger.Info("task updated", "task_id", task.ID, "event_id", task.EventID, "status", string(task.Status))
	return task, nil
}

// ClaimTask marks task in progress.
func (c *Client) ClaimTask(ctx context.Context, task schema.Task) (schema.Task, error) {
	status := schema.StatusInProgress
	return c.UpdateTask(ctx, task, schema.TaskUpdate{Status: &status})
}

// CloseTask marks task closed.
func (c *Client) CloseTask(ctx context.Context, task schema.Task) (schema.Task, error) {
	status := schema.StatusClosed
	return c.UpdateTask(ctx, task, schema.TaskUpdate{Status: &status})
}

func (c *Client) publishTask(ctx context.Context, template event.Template) (schema.Task, error) {
	published, err := c.publish(ctx, template)
	if err != nil {
		return schema.Task{}, err
	}
	return schema.ParseTask(published)
}

// QueryTasks returns the stored tasks matching filter, every revision
// the relay returns.
func (c *Client) QueryTasks(ctx context.Context, filter schema.TaskFilter) ([]schema.Task, error) {
	events, err := c.query(ctx, filter.Filter())
	tasks, skipped := schema.ParseTasks(events)
	c.logSkipped("task", skipped)
	c.remember(tasks)
	return tasks, err
}

func (c *Client) remember(tasks []schema.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, task := range tasks {
		c.taskIDs[task.ID] = struct{}{}
	}
}

// GetMyTasks returns the latest revision of each task this client
// authored, optionally limited to statuses.
func (c *Client) GetMyTasks(ctx context.Context, statuses ...schema.Status) ([]schema.Task, error) {
	tasks, err := c.QueryTasks(ctx, schema.TaskFilter{Authors: []string{c.PublicKey()}})
	tasks = schema.LatestByD(tasks)
	if len(statuses) > 0 {
		tasks = slices.DeleteFunc(tasks, func(task schema.Task) bool {
			return !slices.Contains(statuses, task.Status)
		})
	}
	return tasks, err
}

// authorScope turns FindReady-style author arguments into a filter
// author list: none means this client, an empty string anywhere means
// every author.
func (c *Client) authorScope(authors []string) []string {
	if len(authors) == 0 {
		return []string{c.PublicKey()}
	}
	if slices.Contains(authors, "") {
		return nil
	}
	return authors
}

// FindReady returns open and in-progress tasks with no unfinished
// blocker, most urgent first. With no authors it searches this
// client's tasks; pass "" to search every author.
//
// Only open and in-progress tasks enter the graph, so a blocker that
// is closed or not on the relay is a dangling reference and does not
// block.
func (c *Client) FindReady(ctx context.Context, authors ...string) ([]schema.Task, error) {
	tasks, err := c.QueryTasks(ctx, schema.TaskFilter{
		Authors:  c.authorScope(authors),
		Statuses: []schema.Status{schema.StatusOpen, schema.StatusInProgress},
	})
	if err != nil {
		return nil, err
	}
	tasks = schema.LatestByD(tasks)
	graph := depgraph.Build(tasks)
	return tasksByID(tasks, graph.Actionable(), graph.IsReady), nil
}

// NextTasks returns tasks that can start now, most urgent first: not
// closed, with every blocker closed. Unlike FindReady it reads every
// status, so it sees closed blockers rather than treating them as
// missing.
func (c *Client) NextTasks(ctx context.Context, authors ...string) ([]schema.Task, error) {
	tasks, err := c.QueryTasks(ctx, schema.TaskFilter{Authors: c.authorScope(authors)})
	if err != nil {
		return nil, err
	}
	tasks = schema.LatestByD(tasks)
	graph := depgraph.Build(tasks)
	return tasksByID(tasks, graph.Actionable(), nil), nil
}

// tasksByID returns the tasks with the given event ids, in that order,
// keeping only those keep accepts. A nil keep accepts all.
func tasksByID(tasks []schema.Task, eventIDs []string, keep func(string) bool) []schema.Task {
	byID := make(map[string]schema.Task, len(tasks))
	for _, task := range tasks {
		byID[task.EventID] = task
	}
	selected := make([]schema.Task, 0, len(eventIDs))
	for _, id := range eventIDs {
		if keep != nil && !keep(id) {
			continue
		}
		selected = append(selected, byID[id])
	}
	return selected
}

// GetDependencyGraph builds the dependency graph of the tasks matching
// filter, latest revision per task.
func (c *Client) GetDependencyGraph(ctx context.Context, filter schema.TaskFilter) (*depgraph.Graph, error) {
	tasks, err := c.QueryTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	return depgraph.Build(schema.LatestByD(tasks)), nil
}

// SubscribeToTaskUpdates calls handler for every task event matching
// filter that arrives from now on, in arrival order. Events that do
// not parse are logged and skipped. Close the subscription to stop.
func (c *Client) SubscribeToTaskUpdates(filter schema.TaskFilter, handler func(schema.Task)) *relay.Subscription {
	return c.conn.SubscribeFunc(func(e event.Event) {
		task, err := schema.ParseTask(e)
		if err != nil {
			c.logger.Warn("dropping malformed task event", "event_id", e.ID, "error", err)
			return
		}
		c.remember([]schema.Task{task})
		handler(task)
	}, filter.Filter())
}
