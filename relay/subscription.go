// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/bureau-foundation/wasteland/lib/event"
	"github.com/bureau-foundation/wasteland/transport"
)

// Subscription is a live REQ. Events arrive on Events in relay order.
// The channel is closed by Close, Conn.Unsubscribe, or Conn.Close.
type Subscription struct {
	id      string
	filters []event.Filter
	conn    *Conn

	mu      sync.Mutex
	pending []event.Event
	signal  chan struct{}

	events   chan event.Event
	stopping chan struct{}
	stopOnce sync.Once
}

func newSubscription(conn *Conn, id string, filters []event.Filter) *Subscription {
	s := &Subscription{
		id:       id,
		filters:  slices.Clone(filters),
		conn:     conn,
		signal:   make(chan struct{}, 1),
		events:   make(chan event.Event),
		stopping: make(chan struct{}),
	}
	go s.deliver()
	return s
}

// ID returns the subscription id sent in REQ.
func (s *Subscription) ID() string { return s.id }

// Filters returns a copy of the subscription's filters.
func (s *Subscription) Filters() []event.Filter { return slices.Clone(s.filters) }

// Events returns the delivery channel.
func (s *Subscription) Events() <-chan event.Event { return s.events }

// Close unsubscribes.
func (s *Subscription) Close() { s.conn.Unsubscribe(s.id) }

func (s *Subscription) enqueue(e event.Event) {
	s.mu.Lock()
	s.pending = append(s.pending, e)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// deliver drains the queue onto events until stopped. Undelivered
// events are dropped on stop.
func (s *Subscription) deliver() {
	defer close(s.events)
	for {
		s.mu.Lock()
		var next event.Event
		ready := len(s.pending) > 0
		if ready {
			next = s.pending[0]
			s.pending[0] = event.Event{}
			s.pending = s.pending[1:]
		}
		s.mu.Unlock()

		if !ready {
			select {
			case <-s.signal:
				continue
			case <-s.stopping:
				return
			}
		}
		select {
		case s.events <- next:
		case <-s.stopping:
			return
		}
	}
}

func (s *Subscription) stop() {
	s.stopOnce.Do(func() { close(s.stopping) })
}

// Subscribe registers a subscription and sends its REQ if connected.
// It never blocks on the network: while disconnected the REQ goes out
// on the next successful connect.
func (c *Conn) Subscribe(filters ...event.Filter) *Subscription {
	subscription := newSubscription(c, uuid.NewString(), filters)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		subscription.stop()
		return subscription
	}
	c.subscriptions[subscription.id] = subscription
	var conn transport.Conn
	if c.state == StateConnected {
		conn = c.transport
	}
	c.mu.Unlock()

	c.logger.Debug("subscription registered", "subscription_id", subscription.id)
	if conn != nil {
		if err := c.sendReq(conn, subscription.id, subscription.filters); err != nil {
			c.logger.Warn("REQ not sent, will replay on reconnect",
				"subscription_id", subscription.id,
				"error", err,
			)
		}
	}
	return subscription
}

// SubscribeFunc subscribes and calls handler for each event from a
// dedicated goroutine. handler runs sequentially, in arrival order.
func (c *Conn) SubscribeFunc(handler func(event.Event), filters ...event.Filter) *Subscription {
	subscription := c.Subscribe(filters...)
	go func() {
		for e := range subscription.Events() {
			handler(e)
		}
	}()
	return subscription
}

// Unsubscribe removes the subscription, closes its Events channel, and
// sends CLOSE if connected. Unknown ids are ignored.
func (c *Conn) Unsubscribe(id string) {
	c.mu.Lock()
	subscription, exists := c.subscriptions[id]
	delete(c.subscriptions, id)
	var conn transport.Conn
	if c.state == StateConnected {
		conn = c.transport
	}
	c.mu.Unlock()

	if !exists {
		return
	}
	subscription.stop()
	c.logger.Debug("subscription removed", "subscription_id", id)
	if conn != nil {
		c.sendClose(conn, id)
	}
}

// Subscriptions returns the ids of registered subscriptions.
func (c *Conn) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.subscriptions))
	for id := range c.subscriptions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

type pendingQuery struct {
	mu     sync.Mutex
	ids    map[string]struct{}
	events []event.Event

	done     chan struct{}
	doneOnce sync.Once
}

func (q *pendingQuery) add(e event.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.ids[e.ID]; exists {
		return
	}
	q.ids[e.ID] = struct{}{}
	q.events = append(q.events, e)
}

func (q *pendingQuery) finish() {
	q.doneOnce.Do(func() { close(q.done) })
}

func (q *pendingQuery) results() []event.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.events)
}

// Query runs a one-shot REQ and returns the matching stored events,
// each id once, in arrival order. Collection ends at EOSE, at CLOSED,
// at the query timeout, or when ctx's deadline passes; the events
// gathered so far are returned without error in every case. A
// cancelled ctx returns the partial result with ctx.Err().
// Returns *transport.SendError if not connected.
func (c *Conn) Query(ctx context.Context, filters ...event.Filter) ([]event.Event, error) {
	id := uuid.NewString()
	query := &pendingQuery{
		ids:  make(map[string]struct{}),
		done: make(chan struct{}),
	}

	conn := c.currentTransport()
	if conn == nil {
		return nil, &transport.SendError{Err: ErrNotConnected}
	}
	c.mu.Lock()
	c.queries[id] = query
	c.mu.Unlock()

	removeQuery := func() {
		c.mu.Lock()
		delete(c.queries, id)
		c.mu.Unlock()
	}

	frame, err := EncodeReq(id, filters)
	if err != nil {
		removeQuery()
		return nil, err
	}
	if err := conn.Send(ctx, frame); err != nil {
		removeQuery()
		return nil, err
	}

	var queryErr error
	select {
	case <-query.done:
	case <-c.clock.After(c.config.QueryTimeout):
		c.logger.Debug("query timed out, returning partial results", "subscription_id", id)
	case <-ctx.Done():
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			queryErr = ctx.Err()
		}
	}
	removeQuery()

	if live := c.currentTransport(); live == conn {
		c.sendClose(conn, id)
	}
	return query.results(), queryErr
}
