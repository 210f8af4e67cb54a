// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/wasteland/lib/depgraph"
	"github.com/bureau-foundation/wasteland/lib/schema"
)

// Plan is a parsed plan file.
type Plan struct {
	// Name labels the import in logs. Defaults to the file name.
	Name string `json:"name,omitempty"`

	// Parent is applied to every task that sets none.
	Parent string `json:"parent,omitempty"`

	Tasks []Task `json:"tasks"`
}

// Task is one planned task.
type Task struct {
	// Key names the task within the plan.
	Key string `json:"key"`

	// ID optionally fixes the task id; otherwise the creator assigns
	// one.
	ID       string          `json:"id,omitempty"`
	Title    string          `json:"title"`
	Content  string          `json:"content,omitempty"`
	Priority schema.Priority `json:"priority,omitempty"`
	Parent   string          `json:"parent,omitempty"`

	// After lists keys of tasks that must finish first.
	After []string `json:"after,omitempty"`

	// External lists task or event ids outside the plan that block
	// this task.
	External []string `json:"external,omitempty"`
}

// Parse strips comments and trailing commas from data and decodes it.
// Unknown fields are errors.
func Parse(data []byte) (*Plan, error) {
	decoder := json.NewDecoder(strings.NewReader(string(jsonc.ToJSON(data))))
	decoder.DisallowUnknownFields()
	var plan Plan
	if err := decoder.Decode(&plan); err != nil {
		return nil, fmt.Errorf("plan: parsing: %w", err)
	}
	return &plan, nil
}

// ReadFile reads and parses path. Name defaults to the file's base
// name without extension.
func ReadFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	plan, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if plan.Name == "" {
		base := filepath.Base(path)
		plan.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return plan, nil
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Validate returns human-readable issues. An empty result means the
// plan can be applied.
func Validate(plan *Plan) []string {
	var issues []string
	if len(plan.Tasks) == 0 {
		return []string{"plan has no tasks"}
	}

	keys := make(map[string]int, len(plan.Tasks))
	ids := make(map[string]int)
	for index, task := range plan.Tasks {
		prefix := fmt.Sprintf("tasks[%d]", index)
		switch {
		case task.Key == "":
			issues = append(issues, prefix+": key is required")
		case !keyPattern.MatchString(task.Key):
			issues = append(issues, fmt.Sprintf("%s: key %q must be letters, digits, '.', '_' or '-'", prefix, task.Key))
		default:
			if first, exists := keys[task.Key]; exists {
				issues = append(issues, fmt.Sprintf("%s: duplicate key %q (first used at tasks[%d])", prefix, task.Key, first))
			} else {
				keys[task.Key] = index
			}
		}
		if strings.TrimSpace(task.Title) == "" {
			issues = append(issues, fmt.Sprintf("%s %q: title is required", prefix, task.Key))
		}
		if task.Priority != "" && !task.Priority.Valid() {
			issues = append(issues, fmt.Sprintf("%s %q: unknown priority %q", prefix, task.Key, task.Priority))
		}
		if task.ID != "" {
			if first, exists := ids[task.ID]; exists {
				issues = append(issues, fmt.Sprintf("%s %q: duplicate id %q (first used at tasks[%d])", prefix, task.Key, task.ID, first))
			} else {
				ids[task.ID] = index
			}
		}
	}

	for index, task := range plan.Tasks {
		for _, after := range task.After {
			if after == task.Key {
				issues = append(issues, fmt.Sprintf("tasks[%d] %q: cannot come after itself", index, task.Key))
			} else if _, exists := keys[after]; !exists {
				issues = append(issues, fmt.Sprintf("tasks[%d] %q: after references unknown key %q", index, task.Key, after))
			}
		}
	}
	if len(issues) > 0 {
		return issues
	}

	if cycle := keyGraph(plan).Cycles(); len(cycle) > 0 {
		issues = append(issues, fmt.Sprintf("dependency cycle among: %s", strings.Join(cycle, ", ")))
	}
	return issues
}

// keyGraph builds the dependency graph of the plan with keys standing
// in for event ids.
func keyGraph(plan *Plan) *depgraph.Graph {
	tasks := make([]schema.Task, len(plan.Tasks))
	for i, task := range plan.Tasks {
		tasks[i] = schema.Task{EventID: task.Key, Title: task.Title, BlockedBy: task.After}
	}
	return depgraph.Build(tasks)
}

// Order returns the tasks in creation order: every task after all of
// its blockers. The plan must be valid.
func Order(plan *Plan) ([]Task, error) {
	if issues := Validate(plan); len(issues) > 0 {
		return nil, &InvalidError{Issues: issues}
	}
	byKey := make(map[string]Task, len(plan.Tasks))
	for _, task := range plan.Tasks {
		byKey[task.Key] = task
	}
	keys, _ := keyGraph(plan).SortResult()
	ordered := make([]Task, len(keys))
	for i, key := range keys {
		ordered[i] = byKey[key]
	}
	return ordered, nil
}

// InvalidError carries the issues that stopped a plan.
type InvalidError struct {
	Issues []string
}

func (e *InvalidError) Error() string {
	return "plan: invalid:\n  " + strings.Join(e.Issues, "\n  ")
}

// Creator publishes one task and returns it as stored, with its
// assigned id and event id.
type Creator interface {
	CreateTask(ctx context.Context, params schema.TaskParams) (schema.Task, error)
}

// Created records one task [Apply] published.
type Created struct {
	Key     string `json:"key"`
	TaskID  string `json:"task_id"`
	EventID string `json:"event_id"`
}

// Apply validates plan and creates its tasks in dependency order. On
// failure it returns the tasks created so far with the error; they are
// not rolled back.
func Apply(ctx context.Context, plan *Plan, creator Creator) ([]Created, error) {
	ordered, err := Order(plan)
	if err != nil {
		return nil, err
	}

	taskIDs := make(map[string]string, len(ordered))
	created := make([]Created, 0, len(ordered))
	for _, task := range ordered {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		blockedBy := make([]string, 0, len(task.After)+len(task.External))
		for _, after := range task.After {
			blockedBy = append(blockedBy, taskIDs[after])
		}
		blockedBy = append(blockedBy, task.External...)

		parent := task.Parent
		if parent == "" {
			parent = plan.Parent
		}

		stored, err := creator.CreateTask(ctx, schema.TaskParams{
			ID:        task.ID,
			Title:     task.Title,
			Content:   task.Content,
			Priority:  task.Priority,
			BlockedBy: blockedBy,
			Parent:    parent,
		})
		if err != nil {
			return created, fmt.Errorf("plan: creating %q: %w", task.Key, err)
		}
		taskIDs[task.Key] = stored.ID
		created = append(created, Created{Key: task.Key, TaskID: stored.ID, EventID: stored.EventID})
	}
	return created, nil
}
