// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/bureau-foundation/wasteland/lib/schema"
)

const samplePlan = `{
  // Release train.
  "parent": "wl-root",
  "tasks": [
    {"key": "deploy", "title": "Deploy", "after": ["build", "test"]},
    {"key": "build", "title": "Build", "priority": "high"},
    {"key": "test", "title": "Test", "after": ["build"], "external": ["wl-ci"]},
  ],
}`

type fakeCreator struct {
	created []schema.TaskParams
	failOn  string
}

func (f *fakeCreator) CreateTask(_ context.Context, params schema.TaskParams) (schema.Task, error) {
	if params.Title == f.failOn {
		return schema.Task{}, errors.New("relay rejected")
	}
	f.created = append(f.created, params)
	id := params.ID
	if id == "" {
		id = fmt.Sprintf("wl-%04d", len(f.created))
	}
	return schema.Task{ID: id, EventID: "event-" + id, Title: params.Title}, nil
}

func TestParse(t *testing.T) {
	plan, err := Parse([]byte(samplePlan))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if plan.Parent != "wl-root" || len(plan.Tasks) != 3 {
		t.Fatalf("Parse = %+v", plan)
	}
	if plan.Tasks[1].Priority != schema.PriorityHigh {
		t.Errorf("build priority = %q, want high", plan.Tasks[1].Priority)
	}
	if issues := Validate(plan); len(issues) != 0 {
		t.Errorf("Validate = %v, want none", issues)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`{"tasks": [{"key": "a", "title": "A", "blockers": []}]}`))
	if err == nil {
		t.Fatal("Parse accepted an unknown field")
	}
}

func TestReadFileDefaultsName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "release.jsonc")
	if err := os.WriteFile(path, []byte(samplePlan), 0o644); err != nil {
		t.Fatal(err)
	}
	plan, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if plan.Name != "release" {
		t.Errorf("Name = %q, want release", plan.Name)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		plan Plan
		want string
	}{
		{"empty", Plan{}, "plan has no tasks"},
		{"missing key", Plan{Tasks: []Task{{Title: "A"}}}, "key is required"},
		{"bad key", Plan{Tasks: []Task{{Key: "a b", Title: "A"}}}, "must be letters"},
		{"duplicate key", Plan{Tasks: []Task{{Key: "a", Title: "A"}, {Key: "a", Title: "B"}}}, `duplicate key "a"`},
		{"missing title", Plan{Tasks: []Task{{Key: "a", Title: "  "}}}, "title is required"},
		{"bad priority", Plan{Tasks: []Task{{Key: "a", Title: "A", Priority: "meh"}}}, `unknown priority "meh"`},
		{"duplicate id", Plan{Tasks: []Task{{Key: "a", ID: "wl-1", Title: "A"}, {Key: "b", ID: "wl-1", Title: "B"}}}, `duplicate id "wl-1"`},
		{"self", Plan{Tasks: []Task{{Key: "a", Title: "A", After: []string{"a"}}}}, "after itself"},
		{"unknown after", Plan{Tasks: []Task{{Key: "a", Title: "A", After: []string{"z"}}}}, `unknown key "z"`},
		{"cycle", Plan{Tasks: []Task{
			{Key: "a", Title: "A", After: []string{"c"}},
			{Key: "b", Title: "B", After: []string{"a"}},
			{Key: "c", Title: "C", After: []string{"b"}},
		}}, "dependency cycle among: a, b, c"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			issues := Validate(&test.plan)
			if len(issues) == 0 {
				t.Fatalf("Validate found no issues, want one containing %q", test.want)
			}
			if !slices.ContainsFunc(issues, func(issue string) bool { return strings.Contains(issue, test.want) }) {
				t.Errorf("issues = %v, want one containing %q", issues, test.want)
			}
		})
	}
}

func TestOrder(t *testing.T) {
	plan, err := Parse([]byte(samplePlan))
	if err != nil {
		t.Fatal(err)
	}
	ordered, err := Order(plan)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	position := make(map[string]int)
	for i, task := range ordered {
		position[task.Key] = i
	}
	if len(position) != 3 {
		t.Fatalf("Order returned %d tasks, want 3", len(position))
	}
	if position["build"] > position["test"] || position["test"] > position["deploy"] {
		t.Errorf("Order = %v, blockers must come first", position)
	}
}

func TestApply(t *testing.T) {
	plan, err := Parse([]byte(samplePlan))
	if err != nil {
		t.Fatal(err)
	}
	creator := &fakeCreator{}
	created, err := Apply(context.Background(), plan, creator)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("created %d tasks, want 3", len(created))
	}

	ids := make(map[string]string)
	for _, c := range created {
		ids[c.Key] = c.TaskID
		if c.EventID != "event-"+c.TaskID {
			t.Errorf("%s: EventID = %q", c.Key, c.EventID)
		}
	}
	params := make(map[string]schema.TaskParams)
	for _, p := range creator.created {
		params[p.Title] = p
		if p.Parent != "wl-root" {
			t.Errorf("%s: Parent = %q, want plan parent", p.Title, p.Parent)
		}
	}

	if got := params["Build"].BlockedBy; len(got) != 0 {
		t.Errorf("Build BlockedBy = %v, want none", got)
	}
	if got, want := params["Test"].BlockedBy, []string{ids["build"], "wl-ci"}; !slices.Equal(got, want) {
		t.Errorf("Test BlockedBy = %v, want %v", got, want)
	}
	deploy := slices.Clone(params["Deploy"].BlockedBy)
	slices.Sort(deploy)
	want := []string{ids["build"], ids["test"]}
	slices.Sort(want)
	if !slices.Equal(deploy, want) {
		t.Errorf("Deploy BlockedBy = %v, want %v", deploy, want)
	}
	if params["Build"].Priority != schema.PriorityHigh {
		t.Errorf("Build priority not carried")
	}
}

func TestApplyInvalid(t *testing.T) {
	creator := &fakeCreator{}
	_, err := Apply(context.Background(), &Plan{Tasks: []Task{{Key: "a", Title: "A", After: []string{"b"}}}}, creator)
	var invalid *InvalidError
	if !errors.As(err, &invalid) {
		t.Fatalf("Apply error = %v, want *InvalidError", err)
	}
	if len(creator.created) != 0 {
		t.Errorf("invalid plan published %d tasks", len(creator.created))
	}
}

func TestApplyPartialFailure(t *testing.T) {
	plan, err := Parse([]byte(samplePlan))
	if err != nil {
		t.Fatal(err)
	}
	creator := &fakeCreator{failOn: "Test"}
	created, err := Apply(context.Background(), plan, creator)
	if err == nil || !strings.Contains(err.Error(), `creating "test"`) {
		t.Fatalf("Apply error = %v, want creation failure for test", err)
	}
	if len(created) != 1 || created[0].Key != "build" {
		t.Errorf("created = %+v, want only build", created)
	}
}

func TestApplyCancelled(t *testing.T) {
	plan, err := Parse([]byte(samplePlan))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	created, err := Apply(ctx, plan, &fakeCreator{})
	if !errors.Is(err, context.Canceled) || len(created) != 0 {
		t.Fatalf("Apply = %v, %v; want nothing created and context.Canceled", created, err)
	}
}
