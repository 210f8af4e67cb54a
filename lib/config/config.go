// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable [Load] reads.
const EnvVar = "WASTELAND_CONFIG"

// Environment selects which override section applies.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the complete wasteland configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Relay  RelayConfig  `yaml:"relay"`
	Agent  AgentConfig  `yaml:"agent"`
	Worker WorkerConfig `yaml:"worker"`
	Log    LogConfig    `yaml:"log"`

	// Per-environment overrides, applied after the base values.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides holds the sections an environment may override. Only
// non-zero fields replace base values.
type Overrides struct {
	Relay  *RelayConfig  `yaml:"relay,omitempty"`
	Agent  *AgentConfig  `yaml:"agent,omitempty"`
	Worker *WorkerConfig `yaml:"worker,omitempty"`
	Log    *LogConfig    `yaml:"log,omitempty"`
}

// RelayConfig configures the relay connection.
type RelayConfig struct {
	// URL is the relay websocket URL (ws:// or wss://).
	URL string `yaml:"url"`

	QueryTimeout   Duration `yaml:"query_timeout"`
	PublishTimeout Duration `yaml:"publish_timeout"`
	DialTimeout    Duration `yaml:"dial_timeout"`

	// SeenCapacity bounds the event dedup cache.
	SeenCapacity int `yaml:"seen_capacity"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig configures automatic reconnection.
type ReconnectConfig struct {
	// MaxRetries of 0 retries forever.
	MaxRetries   int      `yaml:"max_retries"`
	InitialDelay Duration `yaml:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay"`
	Multiplier   float64  `yaml:"multiplier"`
}

// AgentConfig identifies the local agent. At most one of KeyFile and
// SeedFile may be set.
type AgentConfig struct {
	// Name labels logs and selects the derived key when SeedFile is
	// used.
	Name string `yaml:"name"`

	// KeyFile holds the hex secret key, optionally age-encrypted.
	KeyFile string `yaml:"key_file"`

	// IdentityFile holds the age identity for an encrypted KeyFile.
	IdentityFile string `yaml:"identity_file"`

	// SeedFile holds a fleet seed; the key is derived from it and Name.
	SeedFile string `yaml:"seed_file"`
}

// WorkerConfig configures `wasteland worker`.
type WorkerConfig struct {
	PollInterval Duration `yaml:"poll_interval"`

	// Simulated work takes a random duration in [MinWork, MaxWork].
	MinWork Duration `yaml:"min_work"`
	MaxWork Duration `yaml:"max_work"`

	// Notify is the hex public key sent POLECAT_DONE after each task.
	// Empty disables notification.
	Notify string `yaml:"notify"`
}

// LogConfig configures CLI logging.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format is auto (text on a terminal, JSON otherwise), text, or
	// json.
	Format string `yaml:"format"`
}

// Duration is a time.Duration written in YAML as a Go duration string
// ("10s", "1m30s").
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"10s\": %w", node.Line, err)
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Environment: Development,
		Relay: RelayConfig{
			URL:            "ws://localhost:7777",
			QueryTimeout:   Duration(10 * time.Second),
			PublishTimeout: Duration(10 * time.Second),
			DialTimeout:    Duration(10 * time.Second),
			SeenCapacity:   10000,
			Reconnect: ReconnectConfig{
				InitialDelay: Duration(time.Second),
				MaxDelay:     Duration(30 * time.Second),
				Multiplier:   2,
			},
		},
		Worker: WorkerConfig{
			PollInterval: Duration(5 * time.Second),
			MinWork:      Duration(2 * time.Second),
			MaxWork:      Duration(5 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads the file named by WASTELAND_CONFIG. It fails when the
// variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your wasteland.yaml, or use --config", EnvVar)
	}
	return LoadFile(path)
}

// LoadFile loads path over [Default], applies the matching
// environment section and expands variables.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse is [LoadFile] for in-memory YAML. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parsing: %w", err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if relay := overrides.Relay; relay != nil {
		override(&c.Relay.URL, relay.URL)
		override(&c.Relay.QueryTimeout, relay.QueryTimeout)
		override(&c.Relay.PublishTimeout, relay.PublishTimeout)
		override(&c.Relay.DialTimeout, relay.DialTimeout)
		override(&c.Relay.SeenCapacity, relay.SeenCapacity)
		override(&c.Relay.Reconnect.MaxRetries, relay.Reconnect.MaxRetries)
		override(&c.Relay.Reconnect.InitialDelay, relay.Reconnect.InitialDelay)
		override(&c.Relay.Reconnect.MaxDelay, relay.Reconnect.MaxDelay)
		override(&c.Relay.Reconnect.Multiplier, relay.Reconnect.Multiplier)
	}
	if agent := overrides.Agent; agent != nil {
		override(&c.Agent.Name, agent.Name)
		override(&c.Agent.KeyFile, agent.KeyFile)
		override(&c.Agent.IdentityFile, agent.IdentityFile)
		override(&c.Agent.SeedFile, agent.SeedFile)
	}
	if worker := overrides.Worker; worker != nil {
		override(&c.Worker.PollInterval, worker.PollInterval)
		override(&c.Worker.MinWork, worker.MinWork)
		override(&c.Worker.MaxWork, worker.MaxWork)
		override(&c.Worker.Notify, worker.Notify)
	}
	if log := overrides.Log; log != nil {
		override(&c.Log.Level, log.Level)
		override(&c.Log.Format, log.Format)
	}
}

// override replaces *target with value when value is not zero.
func override[T comparable](target *T, value T) {
	var zero T
	if value != zero {
		*target = value
	}
}

func (c *Config) expandVariables() {
	c.Relay.URL = expandVars(c.Relay.URL)
	c.Agent.Name = expandVars(c.Agent.Name)
	c.Agent.KeyFile = expandVars(c.Agent.KeyFile)
	c.Agent.IdentityFile = expandVars(c.Agent.IdentityFile)
	c.Agent.SeedFile = expandVars(c.Agent.SeedFile)
	c.Worker.Notify = expandVars(c.Worker.Notify)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars replaces ${VAR} and ${VAR:-default} from the environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"auto", "text", "json"}
)

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]Environment{Development, Staging, Production}, c.Environment) {
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}

	if c.Relay.URL == "" {
		errs = append(errs, fmt.Errorf("relay.url is required"))
	} else if parsed, err := url.Parse(c.Relay.URL); err != nil || (parsed.Scheme != "ws" && parsed.Scheme != "wss") || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("relay.url must be a ws:// or wss:// URL, got %q", c.Relay.URL))
	}
	for _, field := range []struct {
		name  string
		value Duration
	}{
		{"relay.query_timeout", c.Relay.QueryTimeout},
		{"relay.publish_timeout", c.Relay.PublishTimeout},
		{"relay.dial_timeout", c.Relay.DialTimeout},
		{"worker.poll_interval", c.Worker.PollInterval},
	} {
		if field.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", field.name))
		}
	}
	if c.Relay.SeenCapacity <= 0 {
		errs = append(errs, fmt.Errorf("relay.seen_capacity must be positive"))
	}

	reconnect := c.Relay.Reconnect
	if reconnect.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("relay.reconnect.max_retries must not be negative"))
	}
	if reconnect.InitialDelay <= 0 || reconnect.MaxDelay <= 0 {
		errs = append(errs, fmt.Errorf("relay.reconnect delays must be positive"))
	} else if reconnect.MaxDelay < reconnect.InitialDelay {
		errs = append(errs, fmt.Errorf("relay.reconnect.max_delay must be at least initial_delay"))
	}
	if reconnect.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("relay.reconnect.multiplier must be at least 1"))
	}

	if c.Agent.KeyFile != "" && c.Agent.SeedFile != "" {
		errs = append(errs, fmt.Errorf("agent.key_file and agent.seed_file are mutually exclusive"))
	}
	if c.Agent.SeedFile != "" && c.Agent.Name == "" {
		errs = append(errs, fmt.Errorf("agent.name is required with agent.seed_file"))
	}

	if c.Worker.MinWork < 0 || c.Worker.MaxWork < c.Worker.MinWork {
		errs = append(errs, fmt.Errorf("worker work bounds must satisfy 0 <= min_work <= max_work"))
	}

	if !slices.Contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", logLevels))
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", logFormats))
	}

	return errors.Join(errs...)
}
