// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/wasteland/cmd/wasteland/cli"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:    "config",
		Summary: "Inspect the effective configuration",
		Description: `Configuration is read from --config, else $WASTELAND_CONFIG, else the
built-in defaults. The file's environment section (development,
staging, production) is applied, ${VAR} references are expanded, and
connection flags override the result.`,
		Subcommands: []*cli.Command{
			configShowCommand(),
			configCheckCommand(),
		},
	}
}

type configParams struct {
	Connection
}

func configShowCommand() *cli.Command {
	var params configParams
	return &cli.Command{
		Name:    "show",
		Summary: "Print the effective configuration as YAML",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			cfg, err := params.Config()
			if err != nil {
				return err
			}
			// The environment sections are already folded in.
			cfg.Development, cfg.Staging, cfg.Production = nil, nil, nil
			encoder := yaml.NewEncoder(cli.Stdout)
			encoder.SetIndent(2)
			if err := encoder.Encode(cfg); err != nil {
				return cli.Internal("encoding config: %w", err)
			}
			return encoder.Close()
		},
	}
}

func configCheckCommand() *cli.Command {
	var params configParams
	return &cli.Command{
		Name:    "check",
		Summary: "Validate the configuration and agent key",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			cfg, err := params.Config()
			if err != nil {
				return err
			}
			keys, err := loadSigner(cfg.Agent)
			if err != nil {
				return err
			}
			logger.Info("configuration ok", "environment", string(cfg.Environment),
				"relay", cfg.Relay.URL, "public_key", keys.PublicKey())
			return nil
		},
	}
}
