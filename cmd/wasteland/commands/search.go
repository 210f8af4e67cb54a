// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/bureau-foundation/wasteland/cmd/wasteland/cli"
	"github.com/bureau-foundation/wasteland/lib/schema"
	"github.com/bureau-foundation/wasteland/lib/search"
)

type taskSearchParams struct {
	Connection
	cli.JSONOutput
	ColorOutput
	All      bool     `json:"all"    flag:"all,a"    desc:"search tasks by every author"`
	Authors  []string `json:"author" flag:"author"   desc:"search tasks by these public keys (default: your own)"`
	Statuses []string `json:"status" flag:"status,s" desc:"only tasks with these statuses"`
	Limit    int      `json:"limit"  flag:"limit,n"  desc:"show at most this many matches (0 for all)" default:"10"`
}

// searchEntry is a taskEntry with its relevance score.
type searchEntry struct {
	taskEntry
	Score float64 `json:"score"`
}

func taskSearchCommand() *cli.Command {
	var params taskSearchParams
	return &cli.Command{
		Name:    "search",
		Summary: "Find tasks by title, id, and body",
		Description: `Rank the newest revision of each task against the query words.
Title matches weigh most, then task ids, then bodies.`,
		Usage: "wasteland task search QUERY... [flags]",
		Examples: []cli.Example{
			{Description: "Open work mentioning the relay", Command: "wasteland task search --all -s open relay reconnect"},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			query := strings.Join(args, " ")
			if len(search.Tokenize(query)) == 0 {
				return cli.Validation("usage: wasteland task search QUERY... (words of two or more letters)")
			}
			if params.All && len(params.Authors) > 0 {
				return cli.Validation("--all and --author are mutually exclusive")
			}
			statuses, err := parseStatuses(params.Statuses)
			if err != nil {
				return err
			}

			session, err := params.connect(ctx, "task/search")
			if err != nil {
				return err
			}
			defer session.Close()

			filter := schema.TaskFilter{}
			switch {
			case params.All:
			case len(params.Authors) > 0:
				filter.Authors = params.Authors
			default:
				filter.Authors = []string{session.client.PublicKey()}
			}
			tasks, err := session.client.QueryTasks(ctx, filter)
			if err != nil {
				return classify(err)
			}
			tasks = schema.LatestByD(tasks)
			if len(statuses) > 0 {
				tasks = slices.DeleteFunc(tasks, func(task schema.Task) bool {
					return !slices.Contains(statuses, task.Status)
				})
			}

			index := search.NewIndex(tasks)
			hits := index.Search(query, params.Limit)
			session.logger.Debug("search complete", "indexed", index.Len(), "matches", len(hits))

			entries := make([]searchEntry, len(hits))
			matched := make([]schema.Task, len(hits))
			for i, hit := range hits {
				entries[i] = searchEntry{taskEntry: newTaskEntry(hit.Task), Score: hit.Score}
				matched[i] = hit.Task
			}
			if done, err := params.EmitJSON(entries); done {
				return err
			}
			printer, err := params.printer()
			if err != nil {
				return err
			}
			return printer.Tasks(matched)
		},
	}
}
