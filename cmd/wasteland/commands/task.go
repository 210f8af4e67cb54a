// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/bureau-foundation/wasteland/client"
	"github.com/bureau-foundation/wasteland/cmd/wasteland/cli"
	"github.com/bureau-foundation/wasteland/lib/schema"
)

func taskCommand() *cli.Command {
	return &cli.Command{
		Name:    "task",
		Summary: "Create, query, and update tasks",
		Description: `Tasks are addressable events: every revision of a task shares its
task id, and the newest revision from an author replaces older ones on
the relay. Dependencies are expressed with --blocks and --blocked-by,
which accept task ids or event ids.`,
		Subcommands: []*cli.Command{
			taskCreateCommand(),
			taskListCommand(),
			taskShowCommand(),
			taskUpdateCommand(),
			taskClaimCommand(),
			taskCloseCommand(),
			taskReadyCommand(),
			taskNextCommand(),
			taskSearchCommand(),
			taskGraphCommand(),
			taskWatchCommand(),
		},
	}
}

// taskEntry is the JSON form of a task.
type taskEntry struct {
	ID        string   `json:"id"`
	EventID   string   `json:"event_id"`
	Author    string   `json:"author"`
	CreatedAt int64    `json:"created_at"`
	Title     string   `json:"title"`
	Content   string   `json:"content,omitempty"`
	Status    string   `json:"status"`
	Priority  string   `json:"priority"`
	Blocks    []string `json:"blocks,omitempty"`
	BlockedBy []string `json:"blocked_by,omitempty"`
	Parent    string   `json:"parent,omitempty"`
}

func newTaskEntry(task schema.Task) taskEntry {
	return taskEntry{
		ID:        task.ID,
		EventID:   task.EventID,
		Author:    task.Author,
		CreatedAt: task.CreatedAt,
		Title:     task.Title,
		Content:   task.Content,
		Status:    string(task.Status),
		Priority:  string(task.Priority),
		Blocks:    task.Blocks,
		BlockedBy: task.BlockedBy,
		Parent:    task.Parent,
	}
}

func taskEntries(tasks []schema.Task) []taskEntry {
	entries := make([]taskEntry, len(tasks))
	for i, task := range tasks {
		entries[i] = newTaskEntry(task)
	}
	return entries
}

// emitTasks writes tasks as JSON or as a table.
func emitTasks(jsonOutput *cli.JSONOutput, color *ColorOutput, tasks []schema.Task) error {
	if done, err := jsonOutput.EmitJSON(taskEntries(tasks)); done {
		return err
	}
	printer, err := color.printer()
	if err != nil {
		return err
	}
	return printer.Tasks(tasks)
}

func parseStatuses(values []string) ([]schema.Status, error) {
	statuses := make([]schema.Status, 0, len(values))
	for _, value := range values {
		status, ok := schema.ParseStatus(value)
		if !ok {
			return nil, cli.Validation("unknown status %q (want open, in_progress, or closed)", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func parsePriority(value string) (schema.Priority, error) {
	priority, ok := schema.ParsePriority(value)
	if !ok {
		return "", cli.Validation("unknown priority %q (want low, normal, high, or urgent)", value)
	}
	return priority, nil
}

// authorArgs turns --all/--author into FindReady-style author
// arguments.
func authorArgs(all bool, authors []string) []string {
	if all {
		return []string{""}
	}
	return authors
}

// findTask returns the newest revision of the task with the given
// task id or event id. When several authors publish the same task id,
// this client's own revision wins.
func findTask(ctx context.Context, c *client.Client, reference string) (schema.Task, error) {
	tasks, err := c.QueryTasks(ctx, schema.TaskFilter{TaskIDs: []string{reference}})
	if err != nil {
		return schema.Task{}, classify(err)
	}
	if len(tasks) == 0 {
		tasks, err = c.QueryTasks(ctx, schema.TaskFilter{EventIDs: []string{reference}})
		if err != nil {
			return schema.Task{}, classify(err)
		}
	}
	tasks = schema.LatestByD(tasks)
	if len(tasks) == 0 {
		return schema.Task{}, cli.NotFound("task %q not found", reference)
	}

	best := tasks[0]
	for _, task := range tasks[1:] {
		own, bestOwn := task.Author == c.PublicKey(), best.Author == c.PublicKey()
		if own != bestOwn {
			if own {
				best = task
			}
			continue
		}
		if task.CreatedAt > best.CreatedAt {
			best = task
		}
	}
	return best, nil
}

// --- create ---

type taskCreateParams struct {
	Connection
	cli.JSONOutput
	ID          string   `json:"id"          flag:"id"              desc:"task id (default: generated)"`
	Title       string   `json:"title"       flag:"title,t"         desc:"task title"`
	Content     string   `json:"content"     flag:"content,c"       desc:"task body (markdown)"`
	ContentFile string   `json:"-"           flag:"content-file"    desc:"read the task body from a file (- for stdin)"`
	Status      string   `json:"status"      flag:"status,s"        desc:"initial status" default:"open"`
	Priority    string   `json:"priority"    flag:"priority,p"      desc:"low, normal, high, or urgent" default:"normal"`
	Blocks      []string `json:"blocks"      flag:"blocks"          desc:"tasks this task blocks (task or event ids)"`
	BlockedBy   []string `json:"blocked_by"  flag:"blocked-by"      desc:"tasks that block this task (task or event ids)"`
	Parent      string   `json:"parent"      flag:"parent"          desc:"parent task id"`
}

func taskCreateCommand() *cli.Command {
	var params taskCreateParams
	return &cli.Command{
		Name:    "create",
		Summary: "Publish a new task",
		Usage:   "wasteland task create --title TITLE [flags]",
		Examples: []cli.Example{
			{
				Description: "Create an urgent task blocked by another",
				Command:     "wasteland task create -t 'Ship release' -p urgent --blocked-by tests-green",
			},
			{
				Description: "Take the body from a markdown file",
				Command:     "wasteland task create -t 'Write docs' --content-file notes.md",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q", args[0])
			}
			if params.Title == "" {
				return cli.Validation("--title is required")
			}
			content, err := readContent(params.Content, params.ContentFile)
			if err != nil {
				return err
			}
			statuses, err := parseStatuses([]string{params.Status})
			if err != nil {
				return err
			}
			priority, err := parsePriority(params.Priority)
			if err != nil {
				return err
			}

			session, err := params.connect(ctx, "task/create")
			if err != nil {
				return err
			}
			defer session.Close()

			task, err := session.client.CreateTask(ctx, schema.TaskParams{
				ID:        params.ID,
				Title:     params.Title,
				Content:   content,
				Status:    statuses[0],
				Priority:  priority,
				Blocks:    params.Blocks,
				BlockedBy: params.BlockedBy,
				Parent:    params.Parent,
			})
			if err != nil {
				return classify(err)
			}
			session.logger.Info("task created", "task_id", task.ID, "event_id", task.EventID)

			if done, err := params.EmitJSON(newTaskEntry(task)); done {
				return err
			}
			fmt.Fprintln(cli.Stdout, task.ID)
			return nil
		},
	}
}

// --- list ---

type taskListParams struct {
	Connection
	cli.JSONOutput
	ColorOutput
	Statuses []string `json:"status"   flag:"status,s"   desc:"only these statuses (repeatable)"`
	Priority []string `json:"priority" flag:"priority,p" desc:"only these priorities (repeatable)"`
	Authors  []string `json:"author"   flag:"author"     desc:"only tasks by these public keys (default: your own)"`
	All      bool     `json:"all"      flag:"all,a"      desc:"tasks by every author"`
	TaskIDs  []string `json:"id"       flag:"id"         desc:"only these task ids"`
	History  bool     `json:"history"  flag:"history"    desc:"show every revision instead of the newest per task"`
	Limit    int      `json:"limit"    flag:"limit,n"    desc:"relay-side result limit (0 for none)"`
}

func taskListCommand() *cli.Command {
	var params taskListParams
	return &cli.Command{
		Name:    "list",
		Summary: "List tasks",
		Description: `List tasks stored on the relay. By default only your own tasks are
shown, newest revision per task. Filters combine with AND semantics.`,
		Examples: []cli.Example{
			{Description: "Open tasks from every author", Command: "wasteland task list --all -s open"},
			{Description: "Full revision history of one task", Command: "wasteland task list --id build-7f3a --history"},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			statuses, err := parseStatuses(params.Statuses)
			if err != nil {
				return err
			}
			priorities := make([]schema.Priority, 0, len(params.Priority))
			for _, value := range params.Priority {
				priority, err := parsePriority(value)
				if err != nil {
					return err
				}
				priorities = append(priorities, priority)
			}

			session, err := params.connect(ctx, "task/list")
			if err != nil {
				return err
			}
			defer session.Close()

			filter := schema.TaskFilter{
				TaskIDs:    params.TaskIDs,
				Priorities: priorities,
				Limit:      params.Limit,
			}
			switch {
			case params.All:
			case len(params.Authors) > 0:
				filter.Authors = params.Authors
			default:
				filter.Authors = []string{session.client.PublicKey()}
			}
			// Status is filtered after collapsing revisions so a stale
			// revision never matches.
			tasks, err := session.client.QueryTasks(ctx, filter)
			if err != nil {
				return classify(err)
			}
			if !params.History {
				tasks = schema.LatestByD(tasks)
			}
			if len(statuses) > 0 {
				tasks = slices.DeleteFunc(tasks, func(task schema.Task) bool {
					return !slices.Contains(statuses, task.Status)
				})
			}
			slices.SortStableFunc(tasks, func(a, b schema.Task) int {
				if rank := b.Priority.Rank() - a.Priority.Rank(); rank != 0 {
					return rank
				}
				return cmp.Compare(a.CreatedAt, b.CreatedAt)
			})
			return emitTasks(&params.JSONOutput, &params.ColorOutput, tasks)
		},
	}
}

// --- show ---

type taskShowParams struct {
	Connection
	cli.JSONOutput
	ColorOutput
	Deps bool `json:"deps" flag:"deps,d" desc:"also list every task this one transitively waits on and holds up"`
}

// taskShowEntry is a taskEntry with its transitive dependencies, by
// task id.
type taskShowEntry struct {
	taskEntry
	Upstream   []string `json:"upstream,omitempty"`
	Downstream []string `json:"downstream,omitempty"`
	Unblocks   int      `json:"unblocks,omitempty"`
}

// dependencies fills in the upstream and downstream closures of task
// from the graph of its author's tasks.
func (entry *taskShowEntry) dependencies(ctx context.Context, c *client.Client, task schema.Task) error {
	graph, err := c.GetDependencyGraph(ctx, schema.TaskFilter{Authors: []string{task.Author}})
	if err != nil {
		return classify(err)
	}
	labels := func(eventIDs []string) []string {
		result := make([]string, 0, len(eventIDs))
		for _, eventID := range eventIDs {
			node, _ := graph.Node(eventID)
			result = append(result, node.TaskID)
		}
		return result
	}
	eventID, found := graph.Resolve(task.ID)
	if !found {
		return nil
	}
	entry.Upstream = labels(graph.Ancestors(eventID))
	entry.Downstream = labels(graph.Descendants(eventID))
	entry.Unblocks = graph.UnblockCount(eventID)
	return nil
}

func taskShowCommand() *cli.Command {
	var params taskShowParams
	return &cli.Command{
		Name:    "show",
		Summary: "Show one task with its body",
		Usage:   "wasteland task show TASK [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("usage: wasteland task show TASK")
			}
			session, err := params.connect(ctx, "task/show")
			if err != nil {
				return err
			}
			defer session.Close()

			task, err := findTask(ctx, session.client, args[0])
			if err != nil {
				return err
			}
			entry := taskShowEntry{taskEntry: newTaskEntry(task)}
			if params.Deps {
				if err := entry.dependencies(ctx, session.client, task); err != nil {
					return err
				}
			}
			if done, err := params.EmitJSON(entry); done {
				return err
			}

			printer, err := params.printer()
			if err != nil {
				return err
			}
			if err := printer.Tasks([]schema.Task{task}); err != nil {
				return err
			}
			out := cli.Stdout
			fmt.Fprintf(out, "\nevent   %s\nauthor  %s\n", task.EventID, task.Author)
			if task.Parent != "" {
				fmt.Fprintf(out, "parent  %s\n", task.Parent)
			}
			if len(task.BlockedBy) > 0 {
				fmt.Fprintf(out, "after   %v\n", task.BlockedBy)
			}
			if len(task.Blocks) > 0 {
				fmt.Fprintf(out, "blocks  %v\n", task.Blocks)
			}
			if params.Deps {
				fmt.Fprintf(out, "waits on %d, holds up %d, unblocks %d\n",
					len(entry.Upstream), len(entry.Downstream), entry.Unblocks)
				if len(entry.Upstream) > 0 {
					fmt.Fprintf(out, "upstream    %s\n", strings.Join(entry.Upstream, ", "))
				}
				if len(entry.Downstream) > 0 {
					fmt.Fprintf(out, "downstream  %s\n", strings.Join(entry.Downstream, ", "))
				}
			}
			if task.Content != "" {
				fmt.Fprintln(out)
				return printer.Markdown(task.Content)
			}
			return nil
		},
	}
}

// --- update, claim, close ---

type taskUpdateParams struct {
	Connection
	cli.JSONOutput
	Title       string   `json:"title"      flag:"title,t"      desc:"new title"`
	Content     string   `json:"content"    flag:"content,c"    desc:"new body"`
	ContentFile string   `json:"-"          flag:"content-file" desc:"read the new body from a file (- for stdin)"`
	Status      string   `json:"status"     flag:"status,s"     desc:"new status"`
	Priority    string   `json:"priority"   flag:"priority,p"   desc:"new priority"`
	Blocks      []string `json:"blocks"     flag:"blocks"       desc:"replace the blocks list"`
	BlockedBy   []string `json:"blocked_by" flag:"blocked-by"   desc:"replace the blocked-by list"`
	Parent      string   `json:"parent"     flag:"parent"       desc:"new parent task id"`
	ClearDeps   bool     `json:"clear_deps" flag:"clear-deps"   desc:"remove every dependency edge"`
}

func taskUpdateCommand() *cli.Command {
	var params taskUpdateParams
	return &cli.Command{
		Name:    "update",
		Summary: "Publish a new revision of a task",
		Description: `Publish a new revision of a task. Unset flags keep the current
values; the task id never changes.`,
		Usage:  "wasteland task update TASK [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("usage: wasteland task update TASK [flags]")
			}
			update, err := params.update()
			if err != nil {
				return err
			}

			session, err := params.connect(ctx, "task/update")
			if err != nil {
				return err
			}
			defer session.Close()

			existing, err := findTask(ctx, session.client, args[0])
			if err != nil {
				return err
			}
			task, err := session.client.UpdateTask(ctx, existing, update)
			if err != nil {
				return classify(err)
			}
			session.logger.Info("task updated", "task_id", task.ID, "event_id", task.EventID)
			if done, err := params.EmitJSON(newTaskEntry(task)); done {
				return err
			}
			fmt.Fprintln(cli.Stdout, task.EventID)
			return nil
		},
	}
}

func (p *taskUpdateParams) update() (schema.TaskUpdate, error) {
	var update schema.TaskUpdate
	if p.Title != "" {
		update.Title = &p.Title
	}
	if p.Content != "" || p.ContentFile != "" {
		content, err := readContent(p.Content, p.ContentFile)
		if err != nil {
			return update, err
		}
		update.Content = &content
	}
	if p.Status != "" {
		statuses, err := parseStatuses([]string{p.Status})
		if err != nil {
			return update, err
		}
		update.Status = &statuses[0]
	}
	if p.Priority != "" {
		priority, err := parsePriority(p.Priority)
		if err != nil {
			return update, err
		}
		update.Priority = &priority
	}
	if p.Parent != "" {
		update.Parent = &p.Parent
	}
	if p.ClearDeps {
		if len(p.Blocks) > 0 || len(p.BlockedBy) > 0 {
			return update, cli.Validation("--clear-deps cannot be combined with --blocks or --blocked-by")
		}
		update.Blocks = []string{}
		update.BlockedBy = []string{}
	}
	if len(p.Blocks) > 0 {
		update.Blocks = p.Blocks
	}
	if len(p.BlockedBy) > 0 {
		update.BlockedBy = p.BlockedBy
	}
	return update, nil
}

type taskTransitionParams struct {
	Connection
	cli.JSONOutput
	Force bool `json:"force" flag:"force,f" desc:"transition even if the task is already in the target state"`
}

// taskTransitionCommand builds claim and close, which differ only in
// the target status.
func taskTransitionCommand(name, summary string, target schema.Status,
	apply func(*client.Client, context.Context, schema.Task) (schema.Task, error)) *cli.Command {
	var params taskTransitionParams
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   fmt.Sprintf("wasteland task %s TASK [flags]", name),
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("usage: wasteland task %s TASK", name)
			}
			session, err := params.connect(ctx, "task/"+name)
			if err != nil {
				return err
			}
			defer session.Close()

			existing, err := findTask(ctx, session.client, args[0])
			if err != nil {
				return err
			}
			if !params.Force {
				if existing.Status == target {
					return cli.Conflict("task %s is already %s", existing.ID, target)
				}
				if existing.Status == schema.StatusClosed {
					return cli.Conflict("task %s is closed (use --force to reopen it)", existing.ID)
				}
			}

			task, err := apply(session.client, ctx, existing)
			if err != nil {
				return classify(err)
			}
			session.logger.Info("task "+string(target), "task_id", task.ID, "event_id", task.EventID)
			if done, err := params.EmitJSON(newTaskEntry(task)); done {
				return err
			}
			fmt.Fprintf(cli.Stdout, "%s %s\n", task.ID, task.Status)
			return nil
		},
	}
}

func taskClaimCommand() *cli.Command {
	return taskTransitionCommand("claim", "Mark a task in progress", schema.StatusInProgress,
		(*client.Client).ClaimTask)
}

func taskCloseCommand() *cli.Command {
	return taskTransitionCommand("close", "Mark a task closed", schema.StatusClosed,
		(*client.Client).CloseTask)
}
