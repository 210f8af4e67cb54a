// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/wasteland/lib/clock"
	"github.com/bureau-foundation/wasteland/lib/event"
	"github.com/bureau-foundation/wasteland/transport"
)

// State is the connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Operation defaults.
const (
	DefaultQueryTimeout   = 10 * time.Second
	DefaultPublishTimeout = 10 * time.Second
	DefaultDialTimeout    = 10 * time.Second

	// controlSendTimeout bounds best-effort CLOSE and replayed REQ
	// frames.
	controlSendTimeout = 5 * time.Second
)

// Config configures a Conn. Only URL is required.
type Config struct {
	URL string

	// Dialer defaults to a transport.WebsocketDialer.
	Dialer transport.Dialer

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	Reconnect ReconnectPolicy

	QueryTimeout   time.Duration
	PublishTimeout time.Duration

	// DialTimeout bounds automatic reconnect dials. Connect uses the
	// caller's context instead.
	DialTimeout time.Duration

	// SeenCapacity bounds the shared dedup cache.
	SeenCapacity int

	// Verify, when set, is applied to every inbound event. Events
	// that fail are dropped.
	Verify func(event.Event) bool

	// PaymentHook is invoked in its own goroutine for NOTICE messages
	// that mention payment or ILP.
	PaymentHook func(notice string)

	// OnStateChange is invoked after each state transition. Calls
	// from different goroutines may interleave.
	OnStateChange func(State)

	// OnReconnectError is invoked when an automatic reconnect fails,
	// with the zero-based attempt number.
	OnReconnectError func(attempt int, err error)
}

func (c Config) withDefaults() Config {
	if c.Dialer == nil {
		c.Dialer = &transport.WebsocketDialer{}
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	c.Reconnect = c.Reconnect.withDefaults()
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = DefaultQueryTimeout
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = DefaultPublishTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.SeenCapacity <= 0 {
		c.SeenCapacity = DefaultSeenCapacity
	}
	return c
}

// Conn is a managed connection to one relay. Create with New; the
// zero value is not usable.
type Conn struct {
	config Config
	clock  clock.Clock
	logger *slog.Logger
	seen   *SeenCache

	// connectMu serializes dials so at most one is in flight.
	connectMu sync.Mutex

	mu        sync.Mutex
	state     State
	transport transport.Conn
	manual    bool
	closed    bool
	attempt   int

	// reconnectTimer is non-nil while a reconnect is scheduled.
	reconnectTimer *clock.Timer

	subscriptions map[string]*Subscription
	queries       map[string]*pendingQuery
	publishes     map[string][]*pendingPublish
}

// New returns a disconnected Conn. Call Connect to dial.
func New(config Config) *Conn {
	config = config.withDefaults()
	return &Conn{
		config:        config,
		clock:         config.Clock,
		logger:        config.Logger.With("relay", config.URL),
		seen:          NewSeenCache(config.SeenCapacity),
		subscriptions: make(map[string]*Subscription),
		queries:       make(map[string]*pendingQuery),
		publishes:     make(map[string][]*pendingPublish),
	}
}

// URL returns the relay URL.
func (c *Conn) URL() string { return c.config.URL }

// State returns the current state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether a transport is live.
func (c *Conn) Connected() bool {
	return c.State() == StateConnected
}

// Seen returns the shared dedup cache.
func (c *Conn) Seen() *SeenCache { return c.seen }

// Connect dials the relay. On success every registered subscription is
// replayed. On failure the error (a *transport.ConnectError) is
// returned and a reconnect is scheduled. Connect on a connected Conn
// is a no-op. A prior Disconnect is cleared.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.manual = false
	c.mu.Unlock()
	return c.connect(ctx)
}

func (c *Conn) connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	if c.manual || c.closed {
		c.mu.Unlock()
		return &transport.ConnectError{URL: c.config.URL, Err: ErrNotConnected}
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	changed := c.setStateLocked(StateConnecting)
	c.mu.Unlock()
	c.notifyState(changed, StateConnecting)

	conn, err := c.config.Dialer.Dial(ctx, c.config.URL)
	if err != nil {
		if !transport.IsConnectError(err) {
			err = &transport.ConnectError{URL: c.config.URL, Err: err}
		}
		c.logger.Warn("relay connect failed", "error", err)

		c.mu.Lock()
		next := c.scheduleReconnectLocked()
		changed := c.setStateLocked(next)
		c.mu.Unlock()
		c.notifyState(changed, next)
		return err
	}

	c.mu.Lock()
	if c.manual || c.closed {
		changed := c.setStateLocked(StateDisconnected)
		c.mu.Unlock()
		conn.Close()
		c.notifyState(changed, StateDisconnected)
		return &transport.ConnectError{URL: c.config.URL, Err: fmt.Errorf("disconnected while dialing: %w", ErrNotConnected)}
	}
	c.transport = conn
	c.attempt = 0
	changed = c.setStateLocked(StateConnected)
	replay := make([]*Subscription, 0, len(c.subscriptions))
	for _, subscription := range c.subscriptions {
		replay = append(replay, subscription)
	}
	c.mu.Unlock()

	c.logger.Info("connected to relay")
	go c.readLoop(conn)
	c.notifyState(changed, StateConnected)

	if len(replay) > 0 {
		c.logger.Info("replaying subscriptions", "count", len(replay))
	}
	for _, subscription := range replay {
		if err := c.sendReq(conn, subscription.id, subscription.filters); err != nil {
			c.logger.Warn("subscription replay failed",
				"subscription_id", subscription.id,
				"error", err,
			)
		}
	}
	return nil
}

// Disconnect closes the transport and suppresses automatic
// reconnection. Registered subscriptions stay registered and are
// replayed by the next Connect. In-flight queries end with their
// partial results; in-flight publishes fail with *transport.SendError.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	c.manual = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.transport
	c.transport = nil
	closingChanged := false
	if conn != nil {
		closingChanged = c.setStateLocked(StateClosing)
	}
	c.failPendingLocked()
	c.mu.Unlock()

	if conn != nil {
		c.notifyState(closingChanged, StateClosing)
		conn.Close()
		c.logger.Info("disconnected from relay")
	}

	c.mu.Lock()
	changed := c.setStateLocked(StateDisconnected)
	c.mu.Unlock()
	c.notifyState(changed, StateDisconnected)
}

// Close disconnects and ends every subscription. The Conn cannot be
// reused.
func (c *Conn) Close() error {
	c.Disconnect()

	c.mu.Lock()
	c.closed = true
	subscriptions := c.subscriptions
	c.subscriptions = make(map[string]*Subscription)
	c.mu.Unlock()

	for _, subscription := range subscriptions {
		subscription.stop()
	}
	return nil
}

func (c *Conn) readLoop(conn transport.Conn) {
	for data := range conn.Receive() {
		c.dispatch(data)
	}
	c.connectionLost(conn, conn.Err())
}

// connectionLost handles the end of a transport. Stale transports
// (already replaced or deliberately closed) are ignored.
func (c *Conn) connectionLost(conn transport.Conn, cause error) {
	c.mu.Lock()
	if c.transport != conn {
		c.mu.Unlock()
		return
	}
	c.transport = nil
	c.failPendingLocked()

	next := StateDisconnected
	if !c.manual {
		if transport.IsExpectedClose(cause) {
			c.logger.Info("relay closed the connection", "error", cause)
		} else {
			c.logger.Warn("relay connection lost", "error", cause)
		}
		next = c.scheduleReconnectLocked()
	}
	changed := c.setStateLocked(next)
	c.mu.Unlock()
	c.notifyState(changed, next)
}

// scheduleReconnectLocked arms the reconnect timer unless one is
// already armed, the Conn was manually disconnected, or retries are
// exhausted. Returns the state the Conn should move to.
func (c *Conn) scheduleReconnectLocked() State {
	if c.manual || c.closed {
		return StateDisconnected
	}
	if c.reconnectTimer != nil {
		return StateReconnecting
	}
	policy := c.config.Reconnect
	if policy.MaxRetries > 0 && c.attempt >= policy.MaxRetries {
		c.logger.Error("giving up on relay", "attempts", c.attempt)
		if callback := c.config.OnReconnectError; callback != nil {
			attempt := c.attempt
			go callback(attempt, ErrRetriesExhausted)
		}
		return StateDisconnected
	}

	delay := policy.Delay(c.attempt)
	attempt := c.attempt
	c.attempt++
	c.logger.Info("scheduling reconnect", "attempt", attempt+1, "delay", delay)
	c.reconnectTimer = c.clock.AfterFunc(delay, func() { c.reconnect(attempt) })
	return StateReconnecting
}

func (c *Conn) reconnect(attempt int) {
	c.mu.Lock()
	c.reconnectTimer = nil
	if c.manual || c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.config.DialTimeout)
	defer cancel()
	if err := c.connect(ctx); err != nil {
		c.logger.Warn("reconnect failed", "attempt", attempt+1, "error", err)
		if callback := c.config.OnReconnectError; callback != nil {
			callback(attempt, err)
		}
	}
}

// setStateLocked records next and reports whether it differs from
// the previous state.
func (c *Conn) setStateLocked(next State) bool {
	if c.state == next {
		return false
	}
	c.state = next
	return true
}

func (c *Conn) notifyState(changed bool, state State) {
	if !changed {
		return
	}
	c.logger.Debug("relay state changed", "state", state.String())
	if callback := c.config.OnStateChange; callback != nil {
		callback(state)
	}
}

// currentTransport returns the live transport or nil.
func (c *Conn) currentTransport() transport.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return nil
	}
	return c.transport
}

// failPendingLocked ends in-flight queries (with their partial
// results) and publishes (with ErrConnectionLost).
func (c *Conn) failPendingLocked() {
	for id, query := range c.queries {
		query.finish()
		delete(c.queries, id)
	}
	for id, waiters := range c.publishes {
		for _, waiter := range waiters {
			waiter.resolve(&transport.SendError{Err: ErrConnectionLost})
		}
		delete(c.publishes, id)
	}
}

func (c *Conn) sendReq(conn transport.Conn, subscriptionID string, filters []event.Filter) error {
	frame, err := EncodeReq(subscriptionID, filters)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), controlSendTimeout)
	defer cancel()
	return conn.Send(ctx, frame)
}

func (c *Conn) sendClose(conn transport.Conn, subscriptionID string) {
	frame, err := EncodeClose(subscriptionID)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), controlSendTimeout)
	defer cancel()
	if err := conn.Send(ctx, frame); err != nil {
		c.logger.Debug("CLOSE not sent", "subscription_id", subscriptionID, "error", err)
	}
}
