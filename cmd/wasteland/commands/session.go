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

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/wasteland/client"
	"github.com/bureau-foundation/wasteland/cmd/wasteland/cli"
	"github.com/bureau-foundation/wasteland/lib/config"
	"github.com/bureau-foundation/wasteland/lib/render"
	"github.com/bureau-foundation/wasteland/lib/secret"
	"github.com/bureau-foundation/wasteland/lib/signer"
	"github.com/bureau-foundation/wasteland/relay"
	"github.com/bureau-foundation/wasteland/transport"
)

// dialer overrides the websocket dialer. Tests point it at an
// in-process relay.
var dialer transport.Dialer

// Connection holds the flags shared by every command that talks to a
// relay. Flags override the configuration file, which overrides the
// built-in defaults.
type Connection struct {
	ConfigPath   string
	RelayURL     string
	KeyFile      string
	IdentityFile string
	SeedFile     string
	Agent        string
}

// AddFlags registers the connection flags.
func (c *Connection) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.ConfigPath, "config", "", "path to wasteland.yaml (default $"+config.EnvVar+")")
	flagSet.StringVar(&c.RelayURL, "relay", "", "relay websocket URL (overrides relay.url)")
	flagSet.StringVar(&c.KeyFile, "key-file", "", "agent secret key file, - for stdin (overrides agent.key_file)")
	flagSet.StringVar(&c.IdentityFile, "identity", "", "age identity file for an encrypted key file")
	flagSet.StringVar(&c.SeedFile, "seed-file", "", "fleet seed file; the key is derived from it and --agent")
	flagSet.StringVar(&c.Agent, "agent", "", "agent name (overrides agent.name)")
}

// Config loads the configuration: --config if given, else
// $WASTELAND_CONFIG if set, else the defaults. Flag overrides are
// applied before validation.
func (c *Connection) Config() (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case c.ConfigPath != "":
		cfg, err = config.LoadFile(c.ConfigPath)
	case os.Getenv(config.EnvVar) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, &cli.ToolError{Category: cli.CategoryValidation, Err: err}
	}

	if c.RelayURL != "" {
		cfg.Relay.URL = c.RelayURL
	}
	if c.Agent != "" {
		cfg.Agent.Name = c.Agent
	}
	if c.KeyFile != "" {
		cfg.Agent.KeyFile = c.KeyFile
		cfg.Agent.SeedFile = ""
	}
	if c.SeedFile != "" {
		cfg.Agent.SeedFile = c.SeedFile
		cfg.Agent.KeyFile = ""
	}
	if c.IdentityFile != "" {
		cfg.Agent.IdentityFile = c.IdentityFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, &cli.ToolError{Category: cli.CategoryValidation, Err: fmt.Errorf("invalid configuration:\n%w", err)}
	}
	return cfg, nil
}

// loadSigner resolves the agent key from a key file or a seed.
func loadSigner(agent config.AgentConfig) (*signer.KeySigner, error) {
	switch {
	case agent.KeyFile != "":
		keys, err := signer.LoadKeyFile(agent.KeyFile, agent.IdentityFile)
		if err != nil {
			return nil, &cli.ToolError{Category: cli.CategoryValidation, Err: err}
		}
		return keys, nil

	case agent.SeedFile != "":
		seed, err := secret.ReadFile(agent.SeedFile)
		if err != nil {
			return nil, cli.Validation("reading seed file: %w", err)
		}
		defer seed.Close()
		keys, err := signer.Derive(seed.Bytes(), agent.Name)
		if err != nil {
			return nil, &cli.ToolError{Category: cli.CategoryValidation, Err: err}
		}
		return keys, nil

	default:
		return nil, cli.Validation("no agent key configured: pass --key-file or --seed-file, " +
			"or set agent.key_file in the config (create a key with 'wasteland keygen')")
	}
}

func relayConfig(cfg *config.Config) relay.Config {
	reconnect := cfg.Relay.Reconnect
	return relay.Config{
		URL:            cfg.Relay.URL,
		Dialer:         dialer,
		QueryTimeout:   cfg.Relay.QueryTimeout.Std(),
		PublishTimeout: cfg.Relay.PublishTimeout.Std(),
		DialTimeout:    cfg.Relay.DialTimeout.Std(),
		SeenCapacity:   cfg.Relay.SeenCapacity,
		Reconnect: relay.ReconnectPolicy{
			MaxRetries:   reconnect.MaxRetries,
			InitialDelay: reconnect.InitialDelay.Std(),
			MaxDelay:     reconnect.MaxDelay.Std(),
			Multiplier:   reconnect.Multiplier,
		},
	}
}

// session is a connected client plus the configuration it came from.
type session struct {
	client *client.Client
	config *config.Config
	logger *slog.Logger
}

func (s *session) Close() {
	s.client.Close()
}

// connect loads configuration and keys and dials the relay. The
// returned logger follows the config's log section and is scoped to
// command. Callers must Close the session.
func (c *Connection) connect(ctx context.Context, command string) (*session, error) {
	cfg, err := c.Config()
	if err != nil {
		return nil, err
	}
	keys, err := loadSigner(cfg.Agent)
	if err != nil {
		return nil, err
	}

	logger, err := cli.NewCommandLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	logger = logger.With("command", command, "relay", cfg.Relay.URL)
	if cfg.Agent.Name != "" {
		logger = logger.With("agent_name", cfg.Agent.Name)
	}

	relayClient, err := client.New(client.Config{
		Relay:  relayConfig(cfg),
		Signer: keys,
		Logger: logger,
	})
	if err != nil {
		return nil, cli.Internal("%w", err)
	}

	dialContext, cancel := context.WithTimeout(ctx, cfg.Relay.DialTimeout.Std())
	defer cancel()
	if err := relayClient.Connect(dialContext); err != nil {
		relayClient.Close()
		return nil, &cli.ToolError{Category: cli.CategoryTransient, Err: err}
	}
	logger.Debug("connected", "public_key", keys.PublicKey())

	return &session{client: relayClient, config: cfg, logger: logger}, nil
}

// classify attaches a category to errors coming back from the client.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var toolError *cli.ToolError
	if errors.As(err, &toolError) {
		return err
	}

	category := cli.CategoryInternal
	switch {
	case errors.Is(err, client.ErrInvalidParams):
		category = cli.CategoryValidation
	case relay.IsPublishRejected(err):
		category = cli.CategoryConflict
	case errors.Is(err, relay.ErrTimeout),
		errors.Is(err, relay.ErrNotConnected),
		errors.Is(err, relay.ErrConnectionLost),
		errors.Is(err, context.DeadlineExceeded):
		category = cli.CategoryTransient
	}
	return &cli.ToolError{Category: category, Err: err}
}

// ColorOutput adds --color to commands that render tables.
type ColorOutput struct {
	Color string `json:"-" flag:"color" desc:"colorize output: auto, always, or never" default:"auto"`
}

func (o *ColorOutput) printer() (*render.Printer, error) {
	mode, err := render.ParseColorMode(o.Color)
	if err != nil {
		return nil, &cli.ToolError{Category: cli.CategoryValidation, Err: err}
	}
	return render.New(cli.Stdout, mode), nil
}

// readContent returns text, or the contents of path when text is
// empty. A path of "-" reads stdin.
func readContent(text, path string) (string, error) {
	if path == "" {
		return text, nil
	}
	if text != "" {
		return "", cli.Validation("--content and --content-file are mutually exclusive")
	}
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", cli.Validation("reading content: %w", err)
	}
	return string(data), nil
}
