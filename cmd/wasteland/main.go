// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/wasteland/cmd/wasteland/cli"
	"github.com/bureau-foundation/wasteland/cmd/wasteland/commands"
	"github.com/bureau-foundation/wasteland/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := os.Getenv("WASTELAND_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	logger, err := cli.NewCommandLogger(level, os.Getenv("WASTELAND_LOG_FORMAT"))
	if err != nil {
		return err
	}
	return commands.Root().Execute(ctx, os.Args[1:], logger)
}
