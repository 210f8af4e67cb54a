// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"cmp"
	"context"
	"log/slog"
	"time"

	"github.com/bureau-foundation/wasteland/cmd/wasteland/cli"
	"github.com/bureau-foundation/wasteland/lib/version"
	"github.com/bureau-foundation/wasteland/lib/worker"
)

type workerParams struct {
	Connection
	Name         string        `json:"name"          flag:"name"          desc:"worker name for logs and notes (default: agent.name)"`
	All          bool          `json:"all"           flag:"all,a"         desc:"take ready tasks from every author"`
	Authors      []string      `json:"author"        flag:"author"        desc:"take ready tasks from these public keys (default: your own)"`
	PollInterval time.Duration `json:"poll_interval" flag:"poll-interval" desc:"time between searches (default: worker.poll_interval)"`
	MinWork      time.Duration `json:"min_work"      flag:"min-work"      desc:"shortest simulated work (default: worker.min_work)"`
	MaxWork      time.Duration `json:"max_work"      flag:"max-work"      desc:"longest simulated work (default: worker.max_work)"`
	Notify       string        `json:"notify"        flag:"notify"        desc:"public key sent POLECAT_DONE per task (default: worker.notify)"`
}

func workerCommand() *cli.Command {
	var params workerParams
	return &cli.Command{
		Name:    "worker",
		Summary: "Run a worker that claims and completes ready tasks",
		Description: `Poll the relay for ready tasks, claim the most urgent one, simulate
work for a random duration between --min-work and --max-work, close
it, and optionally report POLECAT_DONE. Runs until interrupted; a task
in progress when interrupted stays claimed.`,
		Examples: []cli.Example{
			{
				Description: "Work through everyone's tasks and report to the witness",
				Command:     "wasteland worker --all --notify $WITNESS",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q", args[0])
			}
			if params.All && len(params.Authors) > 0 {
				return cli.Validation("--all and --author are mutually exclusive")
			}
			session, err := params.connect(ctx, "worker")
			if err != nil {
				return err
			}
			defer session.Close()

			settings := session.config.Worker
			name := cmp.Or(params.Name, session.config.Agent.Name, "worker")
			w, err := worker.New(worker.Config{
				Name:         name,
				Client:       session.client,
				Authors:      authorArgs(params.All, params.Authors),
				PollInterval: cmp.Or(params.PollInterval, settings.PollInterval.Std()),
				MinWork:      cmp.Or(params.MinWork, settings.MinWork.Std()),
				MaxWork:      cmp.Or(params.MaxWork, settings.MaxWork.Std()),
				Notify:       cmp.Or(params.Notify, settings.Notify),
				Logger:       session.logger,
			})
			if err != nil {
				return &cli.ToolError{Category: cli.CategoryValidation, Err: err}
			}

			session.logger.Info("worker started", "worker", name, "public_key", session.client.PublicKey(), "version", version.Short())
			err = w.Run(ctx)
			session.logger.Info("worker stopped", "completed", w.Completed(), "failed", w.Failed())
			return classify(err)
		},
	}
}
