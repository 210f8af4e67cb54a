// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"

	"github.com/bureau-foundation/wasteland/client"
	"github.com/bureau-foundation/wasteland/cmd/wasteland/cli"
	"github.com/bureau-foundation/wasteland/lib/schema"
)

type readyParams struct {
	Connection
	cli.JSONOutput
	ColorOutput
	All     bool     `json:"all"    flag:"all,a"   desc:"consider tasks by every author"`
	Authors []string `json:"author" flag:"author"  desc:"consider tasks by these public keys (default: your own)"`
	Limit   int      `json:"limit"  flag:"limit,n" desc:"show at most this many tasks (0 for all)"`
	Check   bool     `json:"check"  flag:"check"   desc:"exit 1 when nothing is ready"`
}

// readyCommand builds ready and next, which differ only in how the
// client selects tasks.
func readyCommand(name, summary, description string,
	find func(*client.Client, context.Context, ...string) ([]schema.Task, error)) *cli.Command {
	var params readyParams
	return &cli.Command{
		Name:        name,
		Summary:     summary,
		Description: description,
		Params:      func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q", args[0])
			}
			if params.All && len(params.Authors) > 0 {
				return cli.Validation("--all and --author are mutually exclusive")
			}
			session, err := params.connect(ctx, "task/"+name)
			if err != nil {
				return err
			}
			defer session.Close()

			tasks, err := find(session.client, ctx, authorArgs(params.All, params.Authors)...)
			if err != nil {
				return classify(err)
			}
			if params.Limit > 0 && len(tasks) > params.Limit {
				tasks = tasks[:params.Limit]
			}
			if err := emitTasks(&params.JSONOutput, &params.ColorOutput, tasks); err != nil {
				return err
			}
			if params.Check && len(tasks) == 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func taskReadyCommand() *cli.Command {
	return readyCommand("ready", "List open tasks with no unfinished blocker",
		`List open and in-progress tasks whose blockers are all finished, most
urgent first. Only open and in-progress tasks are considered, so a
blocker that is closed or absent from the relay does not block.`,
		(*client.Client).FindReady)
}

func taskNextCommand() *cli.Command {
	return readyCommand("next", "List tasks that can start now",
		`List unfinished tasks whose every known blocker is closed, most urgent
first. Unlike ready, closed tasks are read too, so a blocker that was
never closed keeps blocking.`,
		(*client.Client).NextTasks)
}
