// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/wasteland/cmd/wasteland/cli"
	"github.com/bureau-foundation/wasteland/lib/config"
	"github.com/bureau-foundation/wasteland/lib/secret"
	"github.com/bureau-foundation/wasteland/lib/signer"
)

type keygenParams struct {
	cli.JSONOutput
	Out        string   `json:"out"        flag:"out,o"       desc:"write the key file here (mode 0600, never overwritten); default stdout"`
	Recipients []string `json:"recipients" flag:"recipient,r" desc:"age recipient (age1...) to encrypt the key file to (repeatable)"`
	SeedFile   string   `json:"seed_file"  flag:"seed-file"   desc:"derive the key from this fleet seed instead of generating one"`
	Agent      string   `json:"agent"      flag:"agent"       desc:"agent name for --seed-file derivation"`
}

// keygenResult is the JSON output of keygen and whoami.
type keygenResult struct {
	PublicKey string `json:"public_key"`
	KeyFile   string `json:"key_file,omitempty"`
	Encrypted bool   `json:"encrypted,omitempty"`
	Agent     string `json:"agent,omitempty"`
}

func keygenCommand() *cli.Command {
	var params keygenParams
	return &cli.Command{
		Name:    "keygen",
		Summary: "Create an agent signing key",
		Description: `Generate a new secret key, or derive one from a fleet seed and an
agent name. The key file holds the hex secret key; with --recipient it
is age-encrypted (armored) to every recipient, and the matching age
identity must be passed as --identity when the key is used.`,
		Examples: []cli.Example{
			{Description: "Plain key file", Command: "wasteland keygen -o ~/.config/wasteland/agent.key"},
			{Description: "Encrypted to an age recipient", Command: "wasteland keygen -o agent.key.age -r age1ql3z7hjy54pw3hyww5ayyfg7zqgvc7w3j2elw8zmrj2kg5sfn9aqmcac8p"},
			{Description: "Deterministic key for one agent of a fleet", Command: "wasteland keygen --seed-file fleet.seed --agent polecat-3 -o polecat-3.key"},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q", args[0])
			}

			var keys *signer.KeySigner
			if params.SeedFile != "" {
				var err error
				keys, err = loadSigner(config.AgentConfig{Name: params.Agent, SeedFile: params.SeedFile})
				if err != nil {
					return err
				}
			} else {
				if params.Agent != "" {
					return cli.Validation("--agent only applies with --seed-file")
				}
				keys = signer.Generate()
			}

			result := keygenResult{
				PublicKey: keys.PublicKey(),
				KeyFile:   params.Out,
				Encrypted: len(params.Recipients) > 0,
				Agent:     params.Agent,
			}

			if params.Out == "" {
				contents, err := signer.EncodeKeyFile(keys, params.Recipients)
				if err != nil {
					return &cli.ToolError{Category: cli.CategoryValidation, Err: err}
				}
				defer secret.Zero(contents)
				if _, err := cli.Stdout.Write(contents); err != nil {
					return cli.Internal("writing key: %w", err)
				}
				logger.Info("key generated", "public_key", result.PublicKey, "encrypted", result.Encrypted)
				return nil
			}

			if err := signer.WriteKeyFile(params.Out, keys, params.Recipients); err != nil {
				return &cli.ToolError{Category: cli.CategoryConflict, Err: err}
			}
			if done, err := params.EmitJSON(result); done {
				return err
			}
			fmt.Fprintln(cli.Stdout, result.PublicKey)
			return nil
		},
	}
}

type whoamiParams struct {
	Connection
	cli.JSONOutput
}

func whoamiCommand() *cli.Command {
	var params whoamiParams
	return &cli.Command{
		Name:    "whoami",
		Summary: "Print the configured agent's public key",
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
			result := keygenResult{
				PublicKey: keys.PublicKey(),
				KeyFile:   cfg.Agent.KeyFile,
				Agent:     cfg.Agent.Name,
			}
			if done, err := params.EmitJSON(result); done {
				return err
			}
			fmt.Fprintln(cli.Stdout, result.PublicKey)
			return nil
		},
	}
}
