// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the wasteland command tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/wasteland/cmd/wasteland/cli"
	"github.com/bureau-foundation/wasteland/lib/version"
)

// Root builds and returns the complete wasteland command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "wasteland",
		Description: `wasteland: relay-coordinated tasks and messages for agents.

Agents publish tasks and messages as signed events to a shared relay,
claim work whose dependencies are finished, and report back through
typed messages.`,
		Subcommands: []*cli.Command{
			taskCommand(),
			messageCommand(),
			planCommand(),
			workerCommand(),
			keygenCommand(),
			whoamiCommand(),
			configCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					fmt.Fprintf(cli.Stdout, "wasteland %s\n", version.Full())
					return nil
				},
			},
		},
	}
}
