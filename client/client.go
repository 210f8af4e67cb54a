// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/wasteland/lib/clock"
	"github.com/bureau-foundation/wasteland/lib/event"
	"github.com/bureau-foundation/wasteland/relay"
)

// Config configures a Client.
type Config struct {
	// Relay configures the connection. URL is required. A nil
	// Relay.Verify defaults to Signer.Verify; Relay.Clock and
	// Relay.Logger default to Clock and Logger.
	Relay relay.Config

	Signer event.Signer

	// Clock stamps created_at. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client publishes and queries tasks and messages. It is safe for
// concurrent use.
type Client struct {
	conn   *relay.Conn
	signer event.Signer
	clock  clock.Clock
	logger *slog.Logger

	mu sync.Mutex
	// taskIDs holds task ids this client has assigned or seen, so
	// generated ids avoid them.
	taskIDs map[string]struct{}
}

// New returns a disconnected Client. Call Connect before any other
// operation.
func New(config Config) (*Client, error) {
	if config.Signer == nil {
		return nil, errors.New("client: signer is required")
	}
	if config.Relay.URL == "" {
		return nil, errors.New("client: relay URL is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	relayConfig := config.Relay
	if relayConfig.Verify == nil {
		relayConfig.Verify = config.Signer.Verify
	}
	if relayConfig.Clock == nil {
		relayConfig.Clock = config.Clock
	}
	if relayConfig.Logger == nil {
		relayConfig.Logger = config.Logger
	}

	return &Client{
		conn:    relay.New(relayConfig),
		signer:  config.Signer,
		clock:   config.Clock,
		logger:  config.Logger.With("agent", config.Signer.PublicKey()),
		taskIDs: make(map[string]struct{}),
	}, nil
}

// Connect dials the relay. See [relay.Conn.Connect].
func (c *Client) Connect(ctx context.Context) error {
	if err := c.conn.Connect(ctx); err != nil {
		return fmt.Errorf("client: connecting to %s: %w", c.conn.URL(), err)
	}
	return nil
}

// Disconnect drops the connection without ending subscriptions; a
// later Connect replays them.
func (c *Client) Disconnect() { c.conn.Disconnect() }

// Close disconnects and ends every subscription.
func (c *Client) Close() error { return c.conn.Close() }

// Connected reports whether the relay connection is live.
func (c *Client) Connected() bool { return c.conn.Connected() }

// PublicKey returns the hex public key this client signs with.
func (c *Client) PublicKey() string { return c.signer.PublicKey() }

// Conn returns the underlying relay connection.
func (c *Client) Conn() *relay.Conn { return c.conn }

func (c *Client) now() int64 { return c.clock.Now().Unix() }

// publish signs template and waits for the relay to accept it.
func (c *Client) publish(ctx context.Context, template event.Template) (event.Event, error) {
	signed, err := c.signer.Sign(template)
	if err != nil {
		return event.Event{}, fmt.Errorf("client: signing kind %d: %w", template.Kind, err)
	}
	if err := c.conn.Publish(ctx, signed); err != nil {
		return event.Event{}, fmt.Errorf("client: publishing %s: %w", signed.ID, err)
	}
	return signed, nil
}

func (c *Client) query(ctx context.Context, filters ...event.Filter) ([]event.Event, error) {
	events, err := c.conn.Query(ctx, filters...)
	if err != nil {
		return events, fmt.Errorf("client: query: %w", err)
	}
	return events, nil
}

func (c *Client) logSkipped(what string, skipped int) {
	if skipped > 0 {
		c.logger.Warn("skipped malformed events", "type", what, "count", skipped)
	}
}
