// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/bureau-foundation/wasteland/cmd/wasteland/cli"
	"github.com/bureau-foundation/wasteland/lib/codec"
	"github.com/bureau-foundation/wasteland/lib/depgraph"
	"github.com/bureau-foundation/wasteland/lib/schema"
	"github.com/bureau-foundation/wasteland/lib/snapshot"
)

type taskGraphParams struct {
	Connection
	cli.JSONOutput
	ColorOutput
	All      bool     `json:"all"      flag:"all,a"    desc:"include tasks by every author"`
	Authors  []string `json:"author"   flag:"author"   desc:"include tasks by these public keys (default: your own)"`
	Statuses []string `json:"status"   flag:"status,s" desc:"only tasks with these statuses"`
	Export   string   `json:"export"   flag:"export,o" desc:"write a CBOR snapshot to this file (- for stdout)"`
	Compress string   `json:"compress" flag:"compress" desc:"snapshot compression: none, lz4, or zstd" default:"zstd"`
	Inspect  string   `json:"inspect"  flag:"inspect"  desc:"read a snapshot file instead of querying the relay"`
	Diagnose bool     `json:"diagnose" flag:"diagnose" desc:"with --inspect, print the CBOR diagnostic notation"`
}

func taskGraphCommand() *cli.Command {
	var params taskGraphParams
	return &cli.Command{
		Name:    "graph",
		Summary: "Show or export the task dependency graph",
		Description: `Build the dependency graph of the newest revision of each task and
print it in topological order. Ready tasks are marked with *, members
of a dependency cycle with !, and references to tasks the relay does
not have are listed as missing.

--export writes a compact CBOR snapshot of the graph and its analysis,
compressed with lz4 or zstd when that makes it smaller. --inspect reads
such a snapshot back without contacting the relay.`,
		Examples: []cli.Example{
			{Description: "Everyone's open work", Command: "wasteland task graph --all -s open -s in_progress"},
			{Description: "Export a snapshot", Command: "wasteland task graph --all --export graph.cbor --compress zstd"},
			{Description: "Inspect a snapshot", Command: "wasteland task graph --inspect graph.cbor"},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q", args[0])
			}
			if params.Inspect != "" {
				return params.inspect(logger)
			}
			if params.Diagnose {
				return cli.Validation("--diagnose requires --inspect")
			}
			compression, err := snapshot.ParseCompression(params.Compress)
			if err != nil {
				return &cli.ToolError{Category: cli.CategoryValidation, Err: err}
			}
			statuses, err := parseStatuses(params.Statuses)
			if err != nil {
				return err
			}

			session, err := params.connect(ctx, "task/graph")
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
			graph := depgraph.Build(tasks)
			if graph.HasCycle() {
				session.logger.Warn("dependency cycle detected", "tasks", len(graph.Cycles()))
			}
			graphSnapshot := graph.Snapshot()

			if params.Export != "" {
				used, err := exportSnapshot(params.Export, graphSnapshot, compression)
				if err != nil {
					return err
				}
				session.logger.Info("graph exported", "path", params.Export,
					"nodes", len(graphSnapshot.Nodes), "compression", used.String())
				if params.Export == "-" {
					return nil
				}
			}
			return params.emit(graphSnapshot)
		},
	}
}

func (p *taskGraphParams) emit(graphSnapshot depgraph.Snapshot) error {
	if done, err := p.EmitJSON(graphSnapshot); done {
		return err
	}
	printer, err := p.printer()
	if err != nil {
		return err
	}
	return printer.Graph(graphSnapshot)
}

func exportSnapshot(path string, graphSnapshot depgraph.Snapshot, compression snapshot.Compression) (snapshot.Compression, error) {
	if path == "-" {
		used, err := snapshot.Write(cli.Stdout, graphSnapshot, compression)
		if err != nil {
			return used, cli.Internal("%w", err)
		}
		return used, nil
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, cli.Internal("creating snapshot: %w", err)
	}
	used, err := snapshot.Write(file, graphSnapshot, compression)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return used, cli.Internal("writing snapshot: %w", err)
	}
	return used, nil
}

func (p *taskGraphParams) inspect(logger *slog.Logger) error {
	var source io.Reader
	if p.Inspect == "-" {
		source = os.Stdin
	} else {
		file, err := os.Open(p.Inspect)
		if err != nil {
			return cli.NotFound("opening snapshot: %w", err)
		}
		defer file.Close()
		source = file
	}

	graphSnapshot, header, err := snapshot.Read(source)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotSnapshot) {
			return cli.Validation("%s is not a graph snapshot", p.Inspect)
		}
		return &cli.ToolError{Category: cli.CategoryValidation, Err: err}
	}
	logger.Debug("snapshot read", "path", p.Inspect, "version", header.Version,
		"compression", header.Compression.String(), "size", header.Size)

	if p.Diagnose {
		data, err := codec.Marshal(graphSnapshot)
		if err != nil {
			return cli.Internal("encoding snapshot: %w", err)
		}
		diagnostic, err := codec.Diagnose(data)
		if err != nil {
			return cli.Internal("diagnosing snapshot: %w", err)
		}
		fmt.Fprintln(cli.Stdout, diagnostic)
		return nil
	}
	if !p.OutputJSON {
		fmt.Fprintf(cli.Stdout, "snapshot v%d, %s, %d bytes\n", header.Version, header.Compression, header.Size)
	}
	return p.emit(graphSnapshot)
}
