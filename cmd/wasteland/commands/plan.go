// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/bureau-foundation/wasteland/cmd/wasteland/cli"
	"github.com/bureau-foundation/wasteland/lib/plan"
)

func planCommand() *cli.Command {
	return &cli.Command{
		Name:    "plan",
		Summary: "Import a batch of dependent tasks from a plan file",
		Description: `A plan file is JSONC (JSON with comments and trailing commas) listing
tasks under symbolic keys. "after" names the keys a task waits for;
tasks are created blockers-first so each blocked-by tag carries the
real task id. Cycles and unknown keys are rejected before anything is
published.`,
		Subcommands: []*cli.Command{
			planCheckCommand(),
			planImportCommand(),
		},
	}
}

// loadPlan reads and validates path, turning problems into a
// validation error listing every issue.
func loadPlan(path string) (*plan.Plan, []plan.Task, error) {
	loaded, err := plan.ReadFile(path)
	if err != nil {
		return nil, nil, &cli.ToolError{Category: cli.CategoryValidation, Err: err}
	}
	ordered, err := plan.Order(loaded)
	if err != nil {
		var invalid *plan.InvalidError
		if errors.As(err, &invalid) {
			return nil, nil, cli.Validation("%s: %d problem(s):\n  %s", path, len(invalid.Issues),
				strings.Join(invalid.Issues, "\n  "))
		}
		return nil, nil, cli.Internal("%w", err)
	}
	return loaded, ordered, nil
}

// planStep is the JSON form of one task in creation order.
type planStep struct {
	Key   string   `json:"key"`
	Title string   `json:"title"`
	After []string `json:"after,omitempty"`
}

func writePlanOrder(jsonOutput *cli.JSONOutput, ordered []plan.Task) error {
	steps := make([]planStep, len(ordered))
	for i, task := range ordered {
		steps[i] = planStep{Key: task.Key, Title: task.Title, After: task.After}
	}
	if done, err := jsonOutput.EmitJSON(steps); done {
		return err
	}
	writer := tabwriter.NewWriter(cli.Stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintln(writer, "#\tKEY\tTITLE\tAFTER")
	for i, step := range steps {
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\n", i+1, step.Key, step.Title, strings.Join(step.After, ", "))
	}
	return writer.Flush()
}

type planCheckParams struct {
	cli.JSONOutput
}

func planCheckCommand() *cli.Command {
	var params planCheckParams
	return &cli.Command{
		Name:    "check",
		Summary: "Validate a plan file and print its creation order",
		Usage:   "wasteland plan check FILE",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("usage: wasteland plan check FILE")
			}
			_, ordered, err := loadPlan(args[0])
			if err != nil {
				return err
			}
			return writePlanOrder(&params.JSONOutput, ordered)
		},
	}
}

type planImportParams struct {
	Connection
	cli.JSONOutput
	DryRun bool   `json:"dry_run" flag:"dry-run,n" desc:"validate and print the creation order without publishing"`
	Parent string `json:"parent"  flag:"parent"    desc:"parent task id for tasks that set none (overrides the plan)"`
}

func planImportCommand() *cli.Command {
	var params planImportParams
	return &cli.Command{
		Name:    "import",
		Summary: "Create every task in a plan file",
		Usage:   "wasteland plan import FILE [flags]",
		Examples: []cli.Example{
			{Description: "Preview the creation order", Command: "wasteland plan import release.jsonc --dry-run"},
			{Description: "Import under a parent task", Command: "wasteland plan import release.jsonc --parent release-2026-10"},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("usage: wasteland plan import FILE")
			}
			loaded, ordered, err := loadPlan(args[0])
			if err != nil {
				return err
			}
			if params.Parent != "" {
				loaded.Parent = params.Parent
			}
			if params.DryRun {
				return writePlanOrder(&params.JSONOutput, ordered)
			}

			session, err := params.connect(ctx, "plan/import")
			if err != nil {
				return err
			}
			defer session.Close()

			created, err := plan.Apply(ctx, loaded, session.client)
			for _, task := range created {
				session.logger.Info("task created", "plan", loaded.Name, "key", task.Key, "task_id", task.TaskID)
			}
			if err != nil {
				if len(created) > 0 {
					session.logger.Error("plan import stopped partway; created tasks were not rolled back",
						"plan", loaded.Name, "created", len(created), "total", len(ordered))
				}
				return classify(err)
			}

			if done, err := params.EmitJSON(created); done {
				return err
			}
			writer := tabwriter.NewWriter(cli.Stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintln(writer, "KEY\tTASK")
			for _, task := range created {
				fmt.Fprintf(writer, "%s\t%s\n", task.Key, task.TaskID)
			}
			return writer.Flush()
		},
	}
}
