// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/wasteland/cmd/wasteland/cli"
	"github.com/bureau-foundation/wasteland/lib/render"
	"github.com/bureau-foundation/wasteland/lib/schema"
)

// lineWriter serializes watch output; subscription handlers run on
// delivery goroutines.
type lineWriter struct {
	mu sync.Mutex
}

func (w *lineWriter) emit(jsonOutput bool, value any, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if jsonOutput {
		cli.WriteJSON(value)
		return
	}
	fmt.Fprintln(cli.Stdout, text)
}

type taskWatchParams struct {
	Connection
	cli.JSONOutput
	ColorOutput
	All      bool     `json:"all"    flag:"all,a"    desc:"watch tasks by every author"`
	Authors  []string `json:"author" flag:"author"   desc:"watch tasks by these public keys (default: your own)"`
	Statuses []string `json:"status" flag:"status,s" desc:"only revisions with these statuses"`
	TaskIDs  []string `json:"id"     flag:"id"       desc:"only these task ids"`
}

func taskWatchCommand() *cli.Command {
	var params taskWatchParams
	return &cli.Command{
		Name:    "watch",
		Summary: "Stream task revisions as they are published",
		Description: `Subscribe to task events and print each new revision until
interrupted. The subscription survives relay reconnects.`,
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			statuses, err := parseStatuses(params.Statuses)
			if err != nil {
				return err
			}
			printer, err := params.printer()
			if err != nil {
				return err
			}
			session, err := params.connect(ctx, "task/watch")
			if err != nil {
				return err
			}
			defer session.Close()

			filter := schema.TaskFilter{Statuses: statuses, TaskIDs: params.TaskIDs}
			switch {
			case params.All:
			case len(params.Authors) > 0:
				filter.Authors = params.Authors
			default:
				filter.Authors = []string{session.client.PublicKey()}
			}

			var writer lineWriter
			subscription := session.client.SubscribeToTaskUpdates(filter, func(task schema.Task) {
				writer.emit(params.OutputJSON, newTaskEntry(task), fmt.Sprintf("%s  %s  %s  %s  %s",
					task.ID, printer.Status(task.Status), printer.Priority(task.Priority),
					render.ShortKey(task.Author), task.Title))
			})
			defer subscription.Close()
			session.logger.Info("watching tasks", "subscription_id", subscription.ID())

			<-ctx.Done()
			return nil
		},
	}
}

type messageWatchParams struct {
	Connection
	cli.JSONOutput
	ColorOutput
}

func messageWatchCommand() *cli.Command {
	var params messageWatchParams
	return &cli.Command{
		Name:    "watch",
		Summary: "Stream messages addressed to you",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			printer, err := params.printer()
			if err != nil {
				return err
			}
			session, err := params.connect(ctx, "message/watch")
			if err != nil {
				return err
			}
			defer session.Close()

			var writer lineWriter
			subscription := session.client.SubscribeToMessages(func(message schema.Message) {
				writer.emit(params.OutputJSON, newMessageEntry(message), fmt.Sprintf("%s  %s  %s  %s",
					render.ShortKey(message.Sender), message.Type, printer.Priority(message.Priority),
					message.Subject))
			})
			defer subscription.Close()
			session.logger.Info("watching messages", "subscription_id", subscription.ID())

			<-ctx.Done()
			return nil
		},
	}
}
